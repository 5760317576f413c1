package cpu

import (
	"github.com/canopy-ml/canopy/internal/parallel"
	"github.com/canopy-ml/canopy/internal/tensor"
)

// MaxPool2DBackward routes each output gradient to the input position that
// held the window maximum. The argmax is recomputed from the forward input;
// ties resolve to the first maximum in scan order, keeping the pass
// deterministic.
func (b *Backend) MaxPool2DBackward(input, grad *tensor.Tensor, window, stride, padBeg int) *tensor.Tensor {
	n, h, w, c := input.Shape().NHWC()
	_, hOut, wOut, _ := grad.Shape().NHWC()

	inputGrad := tensor.New(tensor.Shape{n, h, w, c})
	inputData := input.Data()
	inputGradData := inputGrad.Data()
	gradData := grad.Data()

	parallel.For(n, func(batch int) {
		in := inputData[batch*h*w*c : (batch+1)*h*w*c]
		inGrad := inputGradData[batch*h*w*c : (batch+1)*h*w*c]
		g := gradData[batch*hOut*wOut*c : (batch+1)*hOut*wOut*c]

		for outH := 0; outH < hOut; outH++ {
			for outW := 0; outW < wOut; outW++ {
				gradPix := g[(outH*wOut+outW)*c : (outH*wOut+outW+1)*c]
				for ch := 0; ch < c; ch++ {
					best := -1
					bestVal := float32(0)
					for dh := 0; dh < window; dh++ {
						hPos := outH*stride - padBeg + dh
						if hPos < 0 || hPos >= h {
							continue
						}
						for dw := 0; dw < window; dw++ {
							wPos := outW*stride - padBeg + dw
							if wPos < 0 || wPos >= w {
								continue
							}
							idx := (hPos*w+wPos)*c + ch
							if best < 0 || in[idx] > bestVal {
								best = idx
								bestVal = in[idx]
							}
						}
					}
					if best >= 0 {
						inGrad[best] += gradPix[ch]
					}
				}
			}
		}
	}, parallel.Config{Enabled: b.par.Enabled, NumWorkers: b.par.NumWorkers, MinChunkSize: 1})

	return inputGrad
}

// AvgPool2DBackward distributes each output gradient uniformly over its
// window (VALID padding, full windows only).
func (b *Backend) AvgPool2DBackward(input, grad *tensor.Tensor, window, stride int) *tensor.Tensor {
	n, h, w, c := input.Shape().NHWC()
	_, hOut, wOut, _ := grad.Shape().NHWC()

	inputGrad := tensor.New(tensor.Shape{n, h, w, c})
	inputGradData := inputGrad.Data()
	gradData := grad.Data()
	scale := 1.0 / float32(window*window)

	parallel.For(n, func(batch int) {
		inGrad := inputGradData[batch*h*w*c : (batch+1)*h*w*c]
		g := gradData[batch*hOut*wOut*c : (batch+1)*hOut*wOut*c]

		for outH := 0; outH < hOut; outH++ {
			for outW := 0; outW < wOut; outW++ {
				gradPix := g[(outH*wOut+outW)*c : (outH*wOut+outW+1)*c]
				for dh := 0; dh < window; dh++ {
					hPos := outH*stride + dh
					for dw := 0; dw < window; dw++ {
						wPos := outW*stride + dw
						inGradPix := inGrad[(hPos*w+wPos)*c : (hPos*w+wPos+1)*c]
						for ch, gv := range gradPix {
							inGradPix[ch] += gv * scale
						}
					}
				}
			}
		}
	}, parallel.Config{Enabled: b.par.Enabled, NumWorkers: b.par.NumWorkers, MinChunkSize: 1})

	return inputGrad
}
