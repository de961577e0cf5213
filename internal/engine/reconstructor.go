package engine

import "context"

// Reconstructor восстанавливает DOCX из PDF через `pdf2docx convert in out`.
type Reconstructor struct {
	bin    string
	runner Runner
}

// NewReconstructor создаёт Reconstructor.
func NewReconstructor(bin string, runner Runner) *Reconstructor {
	return &Reconstructor{bin: bin, runner: runner}
}

func (r *Reconstructor) Name() string    { return r.bin }
func (r *Reconstructor) Available() bool { return r.runner.Available(r.bin) }

// Reconstruct записывает DOCX по пути output.
func (r *Reconstructor) Reconstruct(ctx context.Context, input, output string) error {
	if _, err := r.runner.Run(ctx, r.bin, "convert", input, output); err != nil {
		return err
	}
	return checkOutput(output, r.bin)
}
