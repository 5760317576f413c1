package cpu

import (
	"github.com/canopy-ml/canopy/internal/parallel"
	"github.com/canopy-ml/canopy/internal/tensor"
)

// Conv2DInputBackward computes the gradient w.r.t. the convolution input.
//
// Each output gradient value is distributed back to the input positions that
// contributed to it (transposed convolution). Padding positions are simply
// dropped, which is the correct gradient for zero padding.
func (b *Backend) Conv2DInputBackward(input, kernel, grad *tensor.Tensor, stride, padBeg int) *tensor.Tensor {
	n, h, w, cIn := input.Shape().NHWC()
	kh, kw, _, cOut := kernel.Shape().NHWC()
	_, hOut, wOut, _ := grad.Shape().NHWC()

	inputGrad := tensor.New(tensor.Shape{n, h, w, cIn})
	inputGradData := inputGrad.Data()
	gradData := grad.Data()
	kernelData := kernel.Data()

	// Batches write to disjoint regions of inputGrad, so the outer loop is
	// safe to parallelize.
	parallel.For(n, func(batch int) {
		gradBatch := gradData[batch*hOut*wOut*cOut : (batch+1)*hOut*wOut*cOut]
		inGradBatch := inputGradData[batch*h*w*cIn : (batch+1)*h*w*cIn]

		for outH := 0; outH < hOut; outH++ {
			for outW := 0; outW < wOut; outW++ {
				gradPix := gradBatch[(outH*wOut+outW)*cOut : (outH*wOut+outW+1)*cOut]
				hStart := outH*stride - padBeg
				wStart := outW*stride - padBeg

				for dh := 0; dh < kh; dh++ {
					hPos := hStart + dh
					if hPos < 0 || hPos >= h {
						continue
					}
					for dw := 0; dw < kw; dw++ {
						wPos := wStart + dw
						if wPos < 0 || wPos >= w {
							continue
						}
						inGradPix := inGradBatch[(hPos*w+wPos)*cIn : (hPos*w+wPos+1)*cIn]
						kernBase := ((dh*kw + dw) * cIn) * cOut
						for ci := 0; ci < cIn; ci++ {
							kern := kernelData[kernBase+ci*cOut : kernBase+(ci+1)*cOut]
							sum := float32(0)
							for co, g := range gradPix {
								sum += g * kern[co]
							}
							inGradPix[ci] += sum
						}
					}
				}
			}
		}
	}, parallel.Config{Enabled: b.par.Enabled, NumWorkers: b.par.NumWorkers, MinChunkSize: 1})

	return inputGrad
}

// Conv2DKernelBackward computes the gradient w.r.t. the convolution kernel.
//
// kernel_grad[kh, kw, ci, co] = sum over batch and output positions of
// input[n, h, w, ci] * grad[n, out_h, out_w, co] with h = out_h*stride -
// padBeg + kh (and likewise for w), skipping padded positions.
func (b *Backend) Conv2DKernelBackward(input, kernel, grad *tensor.Tensor, stride, padBeg int) *tensor.Tensor {
	n, h, w, cIn := input.Shape().NHWC()
	kh, kw, _, cOut := kernel.Shape().NHWC()
	_, hOut, wOut, _ := grad.Shape().NHWC()

	kernelGrad := tensor.New(tensor.Shape{kh, kw, cIn, cOut})
	kernelGradData := kernelGrad.Data()
	inputData := input.Data()
	gradData := grad.Data()

	// Each (kh, kw) tap owns a disjoint slice of the kernel gradient.
	parallel.For(kh*kw, func(tap int) {
		dh := tap / kw
		dw := tap % kw
		tapGrad := kernelGradData[tap*cIn*cOut : (tap+1)*cIn*cOut]

		for batch := 0; batch < n; batch++ {
			for outH := 0; outH < hOut; outH++ {
				hPos := outH*stride - padBeg + dh
				if hPos < 0 || hPos >= h {
					continue
				}
				for outW := 0; outW < wOut; outW++ {
					wPos := outW*stride - padBeg + dw
					if wPos < 0 || wPos >= w {
						continue
					}
					inPix := inputData[((batch*h+hPos)*w+wPos)*cIn : ((batch*h+hPos)*w+wPos+1)*cIn]
					gradPix := gradData[((batch*hOut+outH)*wOut+outW)*cOut : ((batch*hOut+outH)*wOut+outW+1)*cOut]
					for ci, x := range inPix {
						if x == 0 {
							continue
						}
						row := tapGrad[ci*cOut : (ci+1)*cOut]
						for co, g := range gradPix {
							row[co] += x * g
						}
					}
				}
			}
		}
	}, parallel.Config{Enabled: b.par.Enabled, NumWorkers: b.par.NumWorkers, MinChunkSize: 1})

	return kernelGrad
}
