package cpu

import (
	"fmt"
	"math"

	"github.com/canopy-ml/canopy/internal/parallel"
	"github.com/canopy-ml/canopy/internal/tensor"
)

// SamePadding computes the padding pair for SAME pooling/convolution:
// output size ceil(size/stride), padding split with the smaller half first.
func SamePadding(size, window, stride int) (beg, end int) {
	out := (size + stride - 1) / stride
	total := (out-1)*stride + window - size
	if total < 0 {
		total = 0
	}
	return total / 2, total - total/2
}

// MaxPool2D performs max pooling over NHWC input.
//
// padBeg/padEnd follow SAME semantics: out-of-bounds window positions are
// ignored rather than read as zero, matching the behavior of padding with
// -inf.
func (b *Backend) MaxPool2D(input *tensor.Tensor, window, stride, padBeg int) *tensor.Tensor {
	n, h, w, c := input.Shape().NHWC()
	if window < 1 || stride < 1 {
		panic(fmt.Sprintf("maxpool2d: invalid window %d / stride %d", window, stride))
	}

	// SAME output size is fully determined by input size and stride.
	hOut := (h + stride - 1) / stride
	wOut := (w + stride - 1) / stride

	output := tensor.New(tensor.Shape{n, hOut, wOut, c})
	inputData := input.Data()
	outputData := output.Data()

	parallel.For(n, func(batch int) {
		in := inputData[batch*h*w*c : (batch+1)*h*w*c]
		out := outputData[batch*hOut*wOut*c : (batch+1)*hOut*wOut*c]
		for outH := 0; outH < hOut; outH++ {
			for outW := 0; outW < wOut; outW++ {
				outPix := out[(outH*wOut+outW)*c : (outH*wOut+outW+1)*c]
				for ch := 0; ch < c; ch++ {
					outPix[ch] = float32(math.Inf(-1))
				}
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
						inPix := in[(hPos*w+wPos)*c : (hPos*w+wPos+1)*c]
						for ch, v := range inPix {
							if v > outPix[ch] {
								outPix[ch] = v
							}
						}
					}
				}
			}
		}
	}, parallel.Config{Enabled: b.par.Enabled, NumWorkers: b.par.NumWorkers, MinChunkSize: 1})

	return output
}

// AvgPool2D performs average pooling with VALID padding over NHWC input.
// The window always lies fully inside the input, so the divisor is window².
func (b *Backend) AvgPool2D(input *tensor.Tensor, window, stride int) *tensor.Tensor {
	n, h, w, c := input.Shape().NHWC()
	if window < 1 || stride < 1 {
		panic(fmt.Sprintf("avgpool2d: invalid window %d / stride %d", window, stride))
	}
	if window > h || window > w {
		panic(fmt.Sprintf("avgpool2d: window %d larger than input %dx%d", window, h, w))
	}

	hOut := (h-window)/stride + 1
	wOut := (w-window)/stride + 1
	output := tensor.New(tensor.Shape{n, hOut, wOut, c})
	inputData := input.Data()
	outputData := output.Data()
	scale := 1.0 / float32(window*window)

	parallel.For(n, func(batch int) {
		in := inputData[batch*h*w*c : (batch+1)*h*w*c]
		out := outputData[batch*hOut*wOut*c : (batch+1)*hOut*wOut*c]
		for outH := 0; outH < hOut; outH++ {
			for outW := 0; outW < wOut; outW++ {
				outPix := out[(outH*wOut+outW)*c : (outH*wOut+outW+1)*c]
				for dh := 0; dh < window; dh++ {
					hPos := outH*stride + dh
					for dw := 0; dw < window; dw++ {
						wPos := outW*stride + dw
						inPix := in[(hPos*w+wPos)*c : (hPos*w+wPos+1)*c]
						for ch, v := range inPix {
							outPix[ch] += v
						}
					}
				}
				for ch := range outPix {
					outPix[ch] *= scale
				}
			}
		}
	}, parallel.Config{Enabled: b.par.Enabled, NumWorkers: b.par.NumWorkers, MinChunkSize: 1})

	return output
}
