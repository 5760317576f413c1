package cpu

import (
	"fmt"

	"github.com/canopy-ml/canopy/internal/parallel"
	"github.com/canopy-ml/canopy/internal/tensor"
)

// Conv2D performs a 2D convolution using the im2col algorithm.
//
// Input shape:  [batch, height, width, in_channels]
// Kernel shape: [kernel_h, kernel_w, in_channels, out_channels]
// Output shape: [batch, out_h, out_w, out_channels]
//
// padBeg/padEnd are the zero-padding amounts applied before the convolution
// along both spatial dimensions. They may differ, which is how the fixed
// padding rule (pad_total = k-1 split as total/2 and the remainder) is
// expressed. The convolution itself is always VALID:
//
//	out_h = (height + padBeg + padEnd - kernel_h)/stride + 1
//
// Algorithm: im2col followed by a matrix multiply. With NHWC layout the
// im2col column ordering (kh, kw, c) matches the kernel's leading dimensions,
// so the matmul result is already in NHWC order and needs no rearrangement.
func (b *Backend) Conv2D(input, kernel *tensor.Tensor, stride, padBeg, padEnd int) *tensor.Tensor {
	n, h, w, cIn := input.Shape().NHWC()
	kh, kw, cInK, cOut := kernel.Shape().NHWC()

	if cIn != cInK {
		panic(fmt.Sprintf("conv2d: input channels %d != kernel channels %d", cIn, cInK))
	}
	if stride < 1 {
		panic(fmt.Sprintf("conv2d: invalid stride %d", stride))
	}

	hOut := (h+padBeg+padEnd-kh)/stride + 1
	wOut := (w+padBeg+padEnd-kw)/stride + 1
	if hOut <= 0 || wOut <= 0 {
		panic(fmt.Sprintf("conv2d: invalid output dimensions out_h=%d, out_w=%d (check stride/padding)", hOut, wOut))
	}

	output := tensor.New(tensor.Shape{n, hOut, wOut, cOut})

	colWidth := kh * kw * cIn
	colHeight := n * hOut * wOut
	colBuf := make([]float32, colHeight*colWidth)
	im2col(colBuf, input.Data(), n, h, w, cIn, kh, kw, hOut, wOut, stride, padBeg)

	// colBuf: [colHeight, colWidth], kernel: [colWidth, cOut] (row-major
	// HWIO is exactly that matrix), output: [colHeight, cOut].
	kernelData := kernel.Data()
	outputData := output.Data()
	parallel.For(colHeight, func(r int) {
		row := colBuf[r*colWidth : (r+1)*colWidth]
		out := outputData[r*cOut : (r+1)*cOut]
		for k, x := range row {
			if x == 0 {
				continue
			}
			kern := kernelData[k*cOut : (k+1)*cOut]
			for co := range out {
				out[co] += x * kern[co]
			}
		}
	}, b.par)

	return output
}

// im2col extracts one input patch per output position into a row of colBuf.
// Out-of-bounds positions read as zero (padding).
func im2col(colBuf, input []float32, n, h, w, cIn, kh, kw, hOut, wOut, stride, padBeg int) {
	colWidth := kh * kw * cIn
	colIdx := 0

	for batch := 0; batch < n; batch++ {
		for outH := 0; outH < hOut; outH++ {
			for outW := 0; outW < wOut; outW++ {
				hStart := outH*stride - padBeg
				wStart := outW*stride - padBeg
				bufIdx := colIdx * colWidth

				for dh := 0; dh < kh; dh++ {
					hPos := hStart + dh
					if hPos < 0 || hPos >= h {
						bufIdx += kw * cIn
						continue
					}
					for dw := 0; dw < kw; dw++ {
						wPos := wStart + dw
						if wPos < 0 || wPos >= w {
							bufIdx += cIn
							continue
						}
						inIdx := ((batch*h+hPos)*w + wPos) * cIn
						copy(colBuf[bufIdx:bufIdx+cIn], input[inIdx:inIdx+cIn])
						bufIdx += cIn
					}
				}
				colIdx++
			}
		}
	}
}
