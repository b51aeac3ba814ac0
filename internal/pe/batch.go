package pe

import (
	"context"
	"runtime"
	"sync"
)

// FileResult is the outcome of analyzing one file in a batch.
type FileResult struct {
	Path     string
	Analysis *Analysis
	Err      error
}

// AnalyzeFiles analyzes every path on up to workers goroutines and returns
// the results in input order. Files are independent; nothing is shared
// between parses. Paths not yet started when ctx is done report ctx.Err().
func AnalyzeFiles(ctx context.Context, paths []string, workers int, opts Options) []FileResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(paths) {
		workers = len(paths)
	}

	results := make([]FileResult, len(paths))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = analyzeOne(ctx, paths[i], opts)
			}
		}()
	}

	for i := range paths {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

func analyzeOne(ctx context.Context, path string, opts Options) FileResult {
	if err := ctx.Err(); err != nil {
		return FileResult{Path: path, Err: err}
	}

	analysis, err := AnalyzeFile(path, opts)
	return FileResult{Path: path, Analysis: analysis, Err: err}
}
