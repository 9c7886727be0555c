package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
	"go.uber.org/zap"
)

// pixelPreview is the product of a successful extraction: the encoded PNG
// (fed to scoring) and the canonical path it was stored under.
type pixelPreview struct {
	PNG  []byte
	Path string
}

// PixelExtractor turns the embedded pixel payload of a dataset into a
// normalized 8-bit grayscale PNG stored in the preview namespace.
//
// Extraction is best-effort by contract: a file without pixel data, or one
// whose payload cannot be decoded or normalized, yields nil and the file's
// ingestion continues without a preview.
type PixelExtractor struct {
	store BlobStore
	log   *zap.SugaredLogger
}

func NewPixelExtractor(store BlobStore, log *zap.SugaredLogger) *PixelExtractor {
	return &PixelExtractor{store: store, log: log}
}

// Extract returns nil when no preview is available; it never fails the file.
func (x *PixelExtractor) Extract(ctx context.Context, ds *dicom.Dataset, imageUID, fileName string) *pixelPreview {
	if _, err := ds.FindElementByTag(tag.PixelData); err != nil {
		x.log.Infow("no pixel data in DICOM file, skipping image extraction and scoring",
			"file", fileName)
		return nil
	}

	img, err := previewImage(ds)
	if err != nil {
		x.log.Warnw("pixel data extraction failed, continuing without preview",
			"file", fileName, "error", err)
		return nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		x.log.Warnw("preview PNG encode failed, continuing without preview",
			"file", fileName, "error", err)
		return nil
	}

	name := imageUID + ".png"
	path, _, err := x.store.Put(ctx, name, buf.Bytes())
	if err != nil {
		x.log.Warnw("preview store failed, continuing without preview",
			"file", fileName, "error", err)
		return nil
	}

	x.log.Infow("pixel data extracted and saved", "file", fileName, "preview", name)
	return &pixelPreview{PNG: buf.Bytes(), Path: path}
}

// previewImage decodes the first pixel-data frame into 8-bit grayscale.
// The pixel accessors panic on malformed values, so this recovers and
// reports them as ordinary errors.
func previewImage(ds *dicom.Dataset) (img *image.Gray, err error) {
	defer func() {
		if r := recover(); r != nil {
			img = nil
			err = fmt.Errorf("pixel data decode: %v", r)
		}
	}()

	el, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, fmt.Errorf("find pixel data: %w", err)
	}

	info := dicom.MustGetPixelDataInfo(el.Value)
	if len(info.Frames) == 0 {
		return nil, fmt.Errorf("pixel data holds no frames")
	}

	native, err := info.Frames[0].GetNativeFrame()
	if err != nil {
		return nil, fmt.Errorf("get native frame: %w", err)
	}
	rows, cols := native.Rows(), native.Cols()
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("empty native frame")
	}

	samples, err := firstSamples(native)
	if err != nil {
		return nil, err
	}

	var pix []uint8
	if native.BitsPerSample() == 8 {
		pix = make([]uint8, len(samples))
		for i, v := range samples {
			pix[i] = clampByte(v)
		}
	} else {
		pix = normalizeSamples(samples)
	}

	img = image.NewGray(image.Rect(0, 0, cols, rows))
	copy(img.Pix, pix)
	return img, nil
}

// firstSamples flattens the frame into one value per pixel, taking the first
// sample of each. The raw slice type follows BitsPerSample, per the frame
// package's contract.
func firstSamples(native frame.INativeFrame) ([]int, error) {
	count := native.Rows() * native.Cols()
	stride := native.SamplesPerPixel()
	if stride < 1 {
		return nil, fmt.Errorf("frame has %d samples per pixel", stride)
	}

	samples := make([]int, count)
	switch data := native.RawDataSlice().(type) {
	case []uint8:
		if len(data) < count*stride {
			return nil, fmt.Errorf("frame data holds %d samples, need %d", len(data), count*stride)
		}
		for i := range samples {
			samples[i] = int(data[i*stride])
		}
	case []uint16:
		if len(data) < count*stride {
			return nil, fmt.Errorf("frame data holds %d samples, need %d", len(data), count*stride)
		}
		for i := range samples {
			samples[i] = int(data[i*stride])
		}
	case []uint32:
		if len(data) < count*stride {
			return nil, fmt.Errorf("frame data holds %d samples, need %d", len(data), count*stride)
		}
		for i := range samples {
			samples[i] = int(data[i*stride])
		}
	case []int:
		if len(data) < count*stride {
			return nil, fmt.Errorf("frame data holds %d samples, need %d", len(data), count*stride)
		}
		for i := range samples {
			samples[i] = data[i*stride]
		}
	default:
		return nil, fmt.Errorf("unsupported pixel data slice type %T", native.RawDataSlice())
	}
	return samples, nil
}

// normalizeSamples rescales arbitrary-depth samples into [0,255] by linear
// min-max normalization over the observed range of this frame.
func normalizeSamples(samples []int) []uint8 {
	min, max := samples[0], samples[0]
	for _, v := range samples {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	out := make([]uint8, len(samples))
	if max == min {
		return out
	}

	scale := 255.0 / float64(max-min)
	for i, v := range samples {
		out[i] = clampByte(int(math.Round(float64(v-min) * scale)))
	}
	return out
}

func clampByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
