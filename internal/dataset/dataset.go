// Package dataset loads multi-label image datasets described by CSV
// manifests.
//
// A split is a CSV file with an image_name column and a tags column holding
// space-separated labels, next to a directory of images. The tag vocabulary
// is built from the training split in first-seen order; every other split
// must produce the identical vocabulary, since label indices are positions
// in it.
package dataset

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/pkg/errors"

	"github.com/canopy-ml/canopy/internal/tensor"
)

// Sample is one manifest row: an image path and its tags.
type Sample struct {
	ImagePath string
	Tags      []string
}

// ReadManifest parses a split's CSV manifest. Image names without an
// extension are assumed to be JPEG files in imageDir.
func ReadManifest(csvPath, imageDir string) ([]Sample, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, errors.Wrap(err, "opening manifest")
	}
	defer f.Close()

	df := dataframe.ReadCSV(f)
	if df.Err != nil {
		return nil, errors.Wrapf(df.Err, "parsing %s", csvPath)
	}
	names := df.Names()
	if !contains(names, "image_name") || !contains(names, "tags") {
		return nil, errors.Errorf("%s must have image_name and tags columns, has %v", csvPath, names)
	}

	imageNames := df.Col("image_name").Records()
	tagLists := df.Col("tags").Records()

	samples := make([]Sample, 0, len(imageNames))
	for i, name := range imageNames {
		if name == "" {
			return nil, errors.Errorf("%s row %d: empty image_name", csvPath, i+1)
		}
		if filepath.Ext(name) == "" {
			name += ".jpg"
		}
		samples = append(samples, Sample{
			ImagePath: filepath.Join(imageDir, name),
			Tags:      strings.Fields(tagLists[i]),
		})
	}
	return samples, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Vocab maps tag names to label indices. Order is first appearance in the
// split the vocabulary was built from.
type Vocab struct {
	Tags  []string
	index map[string]int
}

// BuildVocab collects the tags of samples in first-seen order.
func BuildVocab(samples []Sample) *Vocab {
	v := &Vocab{index: make(map[string]int)}
	for _, s := range samples {
		for _, tag := range s.Tags {
			if _, ok := v.index[tag]; !ok {
				v.index[tag] = len(v.Tags)
				v.Tags = append(v.Tags, tag)
			}
		}
	}
	return v
}

// Len returns the number of distinct tags.
func (v *Vocab) Len() int {
	return len(v.Tags)
}

// Equal reports whether two vocabularies have the same tags in the same
// order. Training and evaluation splits must agree, or label indices would
// mean different tags.
func (v *Vocab) Equal(other *Vocab) bool {
	if len(v.Tags) != len(other.Tags) {
		return false
	}
	for i, tag := range v.Tags {
		if other.Tags[i] != tag {
			return false
		}
	}
	return true
}

// MultiHot encodes tags as a multi-hot vector over the vocabulary.
func (v *Vocab) MultiHot(tags []string) (*tensor.Tensor, error) {
	out := tensor.New(tensor.Shape{len(v.Tags)})
	data := out.Data()
	for _, tag := range tags {
		i, ok := v.index[tag]
		if !ok {
			return nil, errors.Errorf("tag %q is not in the vocabulary", tag)
		}
		data[i] = 1
	}
	return out, nil
}

// Dataset is one split bound to a vocabulary and an input geometry.
type Dataset struct {
	samples     []Sample
	vocab       *Vocab
	imageSize   int
	numChannels int
}

// New binds samples to a vocabulary and the model's input size.
func New(samples []Sample, vocab *Vocab, imageSize, numChannels int) *Dataset {
	return &Dataset{samples: samples, vocab: vocab, imageSize: imageSize, numChannels: numChannels}
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.samples)
}

// NumClasses returns the vocabulary size.
func (d *Dataset) NumClasses() int {
	return d.vocab.Len()
}

// Batches partitions the sample indices into batches of at most batchSize,
// optionally shuffled. The last batch may be short.
func (d *Dataset) Batches(batchSize int, shuffle bool, rng *rand.Rand) [][]int {
	indices := make([]int, len(d.samples))
	for i := range indices {
		indices[i] = i
	}
	if shuffle {
		rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	var batches [][]int
	for start := 0; start < len(indices); start += batchSize {
		end := start + batchSize
		if end > len(indices) {
			end = len(indices)
		}
		batches = append(batches, indices[start:end])
	}
	return batches
}

// LoadBatch reads, resizes and normalizes the images of one batch and
// multi-hot encodes their labels. Shapes are [n, size, size, channels] and
// [n, num_classes].
func (d *Dataset) LoadBatch(indices []int) (images, labels *tensor.Tensor, err error) {
	n := len(indices)
	images = tensor.New(tensor.Shape{n, d.imageSize, d.imageSize, d.numChannels})
	labels = tensor.New(tensor.Shape{n, d.vocab.Len()})

	imageData := images.Data()
	labelData := labels.Data()
	pixelsPer := d.imageSize * d.imageSize * d.numChannels

	for i, idx := range indices {
		s := d.samples[idx]
		if err := LoadImage(s.ImagePath, d.imageSize, d.numChannels, imageData[i*pixelsPer:(i+1)*pixelsPer]); err != nil {
			return nil, nil, err
		}
		hot, err := d.vocab.MultiHot(s.Tags)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "encoding labels of %s", s.ImagePath)
		}
		copy(labelData[i*d.vocab.Len():(i+1)*d.vocab.Len()], hot.Data())
	}
	return images, labels, nil
}
