package digits

import (
	"fmt"
	"runtime"

	ort "github.com/yalue/onnxruntime_go"
)

type SessionOptions struct {
	ModelPath      string
	InputName      string
	OutputName     string
	IntraOpThreads int
	InterOpThreads int
}

// ModelSession is an ONNX Runtime session bound to one input and one output
// tensor. Run writes into those shared buffers, so a ModelSession must only be
// used by one goroutine at a time.
type ModelSession struct {
	Session *ort.AdvancedSession
	Input   *ort.Tensor[float32]
	Output  *ort.Tensor[float32]
}

func NewModelSession(opts SessionOptions) (*ModelSession, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}
	defer options.Destroy()

	intra := opts.IntraOpThreads
	if intra <= 0 {
		intra = runtime.NumCPU()
	}
	inter := opts.InterOpThreads
	if inter <= 0 {
		inter = 1
	}
	if err := options.SetIntraOpNumThreads(intra); err != nil {
		return nil, fmt.Errorf("error setting intra-op threads: %w", err)
	}
	if err := options.SetInterOpNumThreads(inter); err != nil {
		return nil, fmt.Errorf("error setting inter-op threads: %w", err)
	}

	inputShape := ort.NewShape(1, InputChannels, InputHeight, InputWidth)
	outputShape := ort.NewShape(1, NumClasses)

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("error creating output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		opts.ModelPath,
		[]string{opts.InputName},
		[]string{opts.OutputName},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("error creating session: %w", err)
	}

	return &ModelSession{
		Session: session,
		Input:   inputTensor,
		Output:  outputTensor,
	}, nil
}

// Scores copies t into the bound input tensor, runs the model and returns a
// copy of the output scores.
func (m *ModelSession) Scores(t *Tensor) ([]float32, error) {
	copy(m.Input.GetData(), t[:])
	if err := m.Session.Run(); err != nil {
		return nil, err
	}
	out := m.Output.GetData()
	scores := make([]float32, len(out))
	copy(scores, out)
	return scores, nil
}

func (m *ModelSession) Destroy() {
	if m.Session != nil {
		m.Session.Destroy()
	}
	if m.Input != nil {
		m.Input.Destroy()
	}
	if m.Output != nil {
		m.Output.Destroy()
	}
}
