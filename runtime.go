package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	ort "github.com/yalue/onnxruntime_go"
)

// sharedLibraryName returns the ONNX Runtime library file name for this OS.
func sharedLibraryName() string {
	switch runtime.GOOS {
	case "darwin":
		return "libonnxruntime.dylib"
	case "windows":
		return "onnxruntime.dll"
	default:
		return "libonnxruntime.so"
	}
}

// resolveSharedLibrary returns the configured library path, or the first
// search path containing the platform library. An empty result leaves the
// choice to the dynamic loader.
func resolveSharedLibrary(cfg RuntimeConfig) (string, error) {
	if cfg.Library != "" {
		if _, err := os.Stat(cfg.Library); err != nil {
			return "", fmt.Errorf("onnxruntime library not found: %w", err)
		}
		return cfg.Library, nil
	}

	name := sharedLibraryName()
	for _, dir := range cfg.SearchPaths {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", nil
}

func initRuntime(libPath string) (func(), error) {
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}
	return func() {
		if err := ort.DestroyEnvironment(); err != nil {
			fmt.Fprintf(os.Stderr, "destroy ONNX environment: %v\n", err)
		}
	}, nil
}

// resolveModel checks the model file and fills in the input and output names
// the config leaves empty from the model's own metadata.
func resolveModel(cfg ModelConfig) (ModelConfig, error) {
	if _, err := os.Stat(cfg.Path); err != nil {
		return cfg, fmt.Errorf("model file not found: %s", cfg.Path)
	}
	if cfg.InputName != "" && cfg.OutputName != "" {
		return cfg, nil
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.Path)
	if err != nil {
		return cfg, fmt.Errorf("read model inputs and outputs: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return cfg, fmt.Errorf("expected a model with one input and one output, got %d and %d", len(inputs), len(outputs))
	}
	if cfg.InputName == "" {
		cfg.InputName = inputs[0].Name
	}
	if cfg.OutputName == "" {
		cfg.OutputName = outputs[0].Name
	}
	return cfg, nil
}
