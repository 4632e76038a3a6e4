// Package dataset provides the matrices the estimators consume: binary and
// CSV loaders for real data, a seeded synthetic classification generator,
// and a fixed reference set for demos and tests.
package dataset

import "math/rand"

// Dataset is a loaded or generated collection of samples, optionally labeled.
type Dataset struct {
	// Name of the dataset (e.g., "reference", "synthetic", a file stem).
	Name string

	// Dimension of each sample vector.
	Dimension int

	// Vectors holds one sample per row.
	Vectors [][]float64

	// Labels holds the class index per sample. Empty for unlabeled data.
	Labels []int

	// ClassNames maps class indices to display names. Optional.
	ClassNames []string
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.Vectors)
}

// Stats returns summary statistics about the dataset.
func (d *Dataset) Stats() Stats {
	classes := 0
	if len(d.Labels) > 0 {
		seen := make(map[int]struct{})
		for _, l := range d.Labels {
			seen[l] = struct{}{}
		}
		classes = len(seen)
	}
	return Stats{
		Name:       d.Name,
		NumSamples: len(d.Vectors),
		Dimension:  d.Dimension,
		NumClasses: classes,
		Labeled:    len(d.Labels) == len(d.Vectors) && len(d.Vectors) > 0,
	}
}

// Stats contains summary statistics about a dataset.
type Stats struct {
	Name       string
	NumSamples int
	Dimension  int
	NumClasses int
	Labeled    bool
}

// Subset returns a view over the first n samples.
func (d *Dataset) Subset(n int) *Dataset {
	if n > len(d.Vectors) {
		n = len(d.Vectors)
	}
	labels := d.Labels
	if len(labels) > n {
		labels = labels[:n]
	}
	return &Dataset{
		Name:       d.Name + "_subset",
		Dimension:  d.Dimension,
		Vectors:    d.Vectors[:n],
		Labels:     labels,
		ClassNames: d.ClassNames,
	}
}

// Split shuffles the dataset with the given seed and divides it into train
// and test parts, with trainFrac of the samples (rounded down, at least one
// sample on each side when possible) going to the train part.
func (d *Dataset) Split(trainFrac float64, seed int64) (train, test *Dataset) {
	n := len(d.Vectors)
	perm := rand.New(rand.NewSource(seed)).Perm(n)

	cut := int(float64(n) * trainFrac)
	if cut < 1 {
		cut = 1
	}
	if cut >= n && n > 1 {
		cut = n - 1
	}

	pick := func(idx []int, suffix string) *Dataset {
		out := &Dataset{
			Name:       d.Name + suffix,
			Dimension:  d.Dimension,
			Vectors:    make([][]float64, len(idx)),
			ClassNames: d.ClassNames,
		}
		if len(d.Labels) == n {
			out.Labels = make([]int, len(idx))
		}
		for i, j := range idx {
			out.Vectors[i] = d.Vectors[j]
			if out.Labels != nil {
				out.Labels[i] = d.Labels[j]
			}
		}
		return out
	}

	return pick(perm[:cut], "_train"), pick(perm[cut:], "_test")
}
