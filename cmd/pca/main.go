// Command pca fits a projection basis on a dataset and reports what it keeps.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/opaque/principal"
	"github.com/opaque/principal/internal/store"
	"github.com/opaque/principal/pkg/dataset"
	"github.com/opaque/principal/pkg/preprocess"
)

var (
	input     = flag.String("input", "", "Dataset file (.csv or .fvecs); synthetic data when empty")
	hasHeader = flag.Bool("header", false, "First CSV row is a header")
	labelCol  = flag.Int("label-column", -1, "CSV column holding class labels (-1 for none)")

	samples = flag.Int("samples", 2000, "Synthetic sample count")
	dim     = flag.Int("dim", 64, "Synthetic feature count")
	classes = flag.Int("classes", 4, "Synthetic class count")
	seed    = flag.Int64("seed", 42, "Synthetic data seed")

	components = flag.Int("components", 0, "Components to keep (0 selects by -variance)")
	variance   = flag.Float64("variance", 0.95, "Cumulative explained-variance target in (0, 1]")
	raw        = flag.Bool("raw", false, "Fit on raw features without standardization")

	modelName = flag.String("name", "default", "Model name used with -save/-load")
	saveDir   = flag.String("save", "", "Directory to store the fitted model in")
	loadDir   = flag.String("load", "", "Directory to load the model from instead of fitting")
	output    = flag.String("output", "", "CSV file to write the projected rows to")
	bench     = flag.Bool("bench", false, "Time fit and transform")
)

func main() {
	flag.Parse()

	fmt.Println("=== principal - dimensionality reduction ===")
	fmt.Println()

	ds, err := loadData()
	if err != nil {
		log.Fatalf("Failed to load data: %v", err)
	}
	fmt.Printf("Dataset: %s (%d samples, %d features)\n\n", ds.Name, ds.Len(), ds.Dimension)

	var red *principal.Reducer
	if *loadDir != "" {
		red, err = loadModel(*loadDir, *modelName)
		if err != nil {
			log.Fatalf("Failed to load model: %v", err)
		}
		fmt.Printf("Loaded model %q from %s (%d components)\n\n", *modelName, *loadDir, red.Components())
	} else {
		red, err = principal.Open(principal.Config{
			Components:     *components,
			VarianceTarget: *variance,
			Raw:            *raw,
		})
		if err != nil {
			log.Fatalf("Invalid configuration: %v", err)
		}

		start := time.Now()
		if err := red.Fit(ds.Vectors); err != nil {
			log.Fatalf("Fit failed: %v", err)
		}
		fmt.Printf("Fitted in %v\n\n", time.Since(start))
	}

	rep, err := red.Report()
	if err != nil {
		log.Fatalf("Report failed: %v", err)
	}
	fmt.Print(rep.String())
	fmt.Println()

	mse, err := red.ReconstructionError(ds.Vectors)
	if err != nil {
		log.Fatalf("Reconstruction error failed: %v", err)
	}
	fmt.Printf("Reconstruction MSE: %.6g\n\n", mse)

	if *output != "" {
		projected, err := red.Transform(ds.Vectors)
		if err != nil {
			log.Fatalf("Transform failed: %v", err)
		}
		if err := dataset.SaveCSV(*output, projected); err != nil {
			log.Fatalf("Failed to write output: %v", err)
		}
		fmt.Printf("Wrote %d projected rows to %s\n\n", len(projected), *output)
	}

	if *saveDir != "" {
		if err := saveModel(*saveDir, *modelName, red); err != nil {
			log.Fatalf("Failed to save model: %v", err)
		}
		fmt.Printf("Saved model %q to %s\n\n", *modelName, *saveDir)
	}

	if *bench {
		runBenchmarks(red, ds.Vectors)
	}

	fmt.Println("=== Done ===")
}

// loadData reads the dataset named by -input, or generates a synthetic one.
func loadData() (*dataset.Dataset, error) {
	if *input == "" {
		return dataset.Generate(dataset.GenerateConfig{
			Samples:  *samples,
			Features: *dim,
			Classes:  *classes,
			Seed:     *seed,
		}), nil
	}

	switch ext := strings.ToLower(filepath.Ext(*input)); ext {
	case ".fvecs":
		return dataset.FromFvecs(*input, "")
	case ".csv":
		opts := dataset.DefaultCSVOptions()
		opts.HasHeader = *hasHeader
		opts.LabelColumn = *labelCol
		return dataset.LoadCSV(*input, opts)
	default:
		return nil, fmt.Errorf("unsupported input format %q (use .csv or .fvecs)", ext)
	}
}

// loadModel restores a reducer from a snapshot directory.
func loadModel(dir, name string) (*principal.Reducer, error) {
	fs, err := store.NewFileStore(dir)
	if err != nil {
		return nil, err
	}
	defer fs.Close()

	snap, err := fs.Get(context.Background(), name)
	if err != nil {
		return nil, err
	}

	est, err := snap.Restore()
	if err != nil {
		return nil, err
	}

	var scaler *preprocess.StandardScaler
	if len(snap.ScalerMean) > 0 {
		scaler, err = preprocess.Restore(snap.ScalerMean, snap.ScalerScale)
		if err != nil {
			return nil, err
		}
	}
	return principal.Reopen(est, scaler)
}

// saveModel snapshots the reducer into a directory, replacing any snapshot
// already stored under the name.
func saveModel(dir, name string, red *principal.Reducer) error {
	fs, err := store.NewFileStore(dir)
	if err != nil {
		return err
	}
	defer fs.Close()

	snap, err := store.FromPCA(name, red.PCA())
	if err != nil {
		return err
	}
	if sc := red.Scaler(); sc != nil {
		snap.ScalerMean = sc.Mean()
		snap.ScalerScale = sc.Scale()
	}

	ctx := context.Background()
	if err := fs.Delete(ctx, name); err != nil {
		return err
	}
	return fs.Put(ctx, snap)
}

func runBenchmarks(red *principal.Reducer, X [][]float64) {
	fmt.Println("=== Benchmarks ===")
	fmt.Println()

	// Batch transform
	start := time.Now()
	n := 20
	for i := 0; i < n; i++ {
		if _, err := red.Transform(X); err != nil {
			log.Fatalf("Transform failed: %v", err)
		}
	}
	batch := time.Since(start) / time.Duration(n)
	fmt.Printf("Batch transform:  %v/op (%d rows)\n", batch, len(X))

	// Single vector
	start = time.Now()
	vecN := 2000
	for i := 0; i < vecN; i++ {
		if _, err := red.TransformVector(X[i%len(X)]); err != nil {
			log.Fatalf("TransformVector failed: %v", err)
		}
	}
	single := time.Since(start) / time.Duration(vecN)
	fmt.Printf("Single vector:    %v/op\n", single)
	if single > 0 {
		fmt.Printf("Estimated rate:   %.0f vectors/sec\n", float64(time.Second)/float64(single))
	}
	fmt.Println()
}
