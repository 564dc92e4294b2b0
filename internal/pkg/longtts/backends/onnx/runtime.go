package onnx

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/rs/zerolog/log"
	ort "github.com/yalue/onnxruntime_go"
)

var (
	envOnce sync.Once
	envErr  error
)

func sharedLibraryPath() string {
	if envPath := os.Getenv("ONNXRUNTIME_LIB_PATH"); envPath != "" {
		return envPath
	}

	var candidates []string
	fallback := "libonnxruntime.so"
	switch runtime.GOOS {
	case "windows":
		candidates = []string{"onnxruntime.dll", "./lib/onnxruntime.dll"}
		fallback = "onnxruntime.dll"
	case "darwin":
		candidates = []string{
			"/usr/local/lib/libonnxruntime.dylib",
			"/opt/homebrew/lib/libonnxruntime.dylib",
			"./libonnxruntime.dylib",
		}
		fallback = "libonnxruntime.dylib"
	default:
		candidates = []string{
			"/usr/lib/libonnxruntime.so",
			"/usr/local/lib/libonnxruntime.so",
			"./libonnxruntime.so",
			"./lib/libonnxruntime.so",
		}
	}

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return fallback
}

// initRuntime loads the shared library once per process.
func initRuntime() error {
	envOnce.Do(func() {
		if ort.IsInitialized() {
			return
		}
		libPath := sharedLibraryPath()
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			envErr = fmt.Errorf("failed to initialize ONNX runtime from %s: %w", libPath, err)
			return
		}
		log.Debug().Str("lib", libPath).Msg("ONNX runtime initialized")
	})
	return envErr
}

// sessionOptions attaches the CUDA provider when device is cuda. A provider
// that cannot be attached degrades to CPU with a warning.
func sessionOptions(device string) (*ort.SessionOptions, string, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, "", fmt.Errorf("failed to create session options: %w", err)
	}
	if device != "cuda" {
		return opts, "cpu", nil
	}

	cudaOpts, err := ort.NewCUDAProviderOptions()
	if err != nil {
		log.Warn().Err(err).Msg("CUDA provider unavailable, using CPU")
		return opts, "cpu", nil
	}
	defer cudaOpts.Destroy()

	if err := opts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
		log.Warn().Err(err).Msg("Failed to attach CUDA provider, using CPU")
		return opts, "cpu", nil
	}
	return opts, "cuda", nil
}
