package utils

import "sync"

type CompletedTask[T any] struct {
	Index  int
	Result T
	Error  error
}

// RunInPool runs worker over inputs with at most maxWorkers goroutines and
// returns the results in input order.
func RunInPool[In any, Out any](worker func(In) (Out, error), inputs []In, maxWorkers int) []CompletedTask[Out] {
	results := make([]CompletedTask[Out], len(inputs))
	if len(inputs) == 0 {
		return results
	}

	workers := max(1, min(len(inputs), maxWorkers))

	queue := make(chan int, len(inputs))
	for i := range inputs {
		queue <- i
	}
	close(queue)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range queue {
				res, err := worker(inputs[i])
				results[i] = CompletedTask[Out]{Index: i, Result: res, Error: err}
			}
		}()
	}
	wg.Wait()

	return results
}
