// Package detection runs a COCO YOLO network through the OpenCV DNN module
// and turns its output into vehicle detections on the canonical lane frame.
package detection

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"lanecam/vehicle"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Global debug function for detection package
var debugMsgFunc func(string, string, ...string)

// SetDebugFunction allows main package to provide debug function
func SetDebugFunction(fn func(string, string, ...string)) {
	debugMsgFunc = fn
}

// debugMsg is a wrapper that handles nil checks
func debugMsg(component, message string, trackID ...string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message, trackID...)
	}
}

// InferenceProvider runs the network on one frame and returns every box above
// the provider's confidence floor, in frame pixels, for any class.
type InferenceProvider interface {
	Initialize(modelPath, configPath string) error
	Detect(frame gocv.Mat) ([]vehicle.Detection, error)
	Close() error
	GetProviderInfo() ProviderInfo
}

// ProviderInfo contains information about the inference provider
type ProviderInfo struct {
	Type         string        // "GPU" or "CPU"
	Backend      string        // "CUDA", "OpenCV CPU"
	Device       string        // Device identifier
	EstimatedFPS int           // Estimated inference FPS
	InitTime     time.Duration // Time taken to initialize
}

// ProviderManager picks the GPU provider when CUDA works and falls back to CPU
type ProviderManager struct {
	inputSize     int
	minConfidence float64
	nmsThreshold  float64

	currentProvider InferenceProvider
	providerInfo    ProviderInfo
}

// NewProviderManager creates a manager whose providers feed the network
// inputSize x inputSize blobs and keep boxes scoring at least minConfidence.
// Same-class boxes overlapping by more than nmsThreshold IoU are merged.
func NewProviderManager(inputSize int, minConfidence, nmsThreshold float64) *ProviderManager {
	return &ProviderManager{inputSize: inputSize, minConfidence: minConfidence, nmsThreshold: nmsThreshold}
}

// Initialize performs auto-detection and initializes the best available
// provider. forceCPU skips the GPU check.
func (pm *ProviderManager) Initialize(modelPath, configPath string, forceCPU bool) error {
	debugMsg("PROVIDER", "Auto-detecting best inference provider...")

	if !forceCPU && hasGPUCapability() {
		gpu := NewGPUProvider(pm.inputSize, pm.minConfidence, pm.nmsThreshold)
		start := time.Now()
		err := gpu.Initialize(modelPath, configPath)
		if err == nil && testProvider(gpu, pm.inputSize) {
			pm.currentProvider = gpu
			pm.providerInfo = gpu.GetProviderInfo()
			pm.providerInfo.InitTime = time.Since(start)
			debugMsg("PROVIDER", fmt.Sprintf("GPU provider initialized (%v)", pm.providerInfo.InitTime))
			return nil
		}
		if err != nil {
			debugMsg("PROVIDER", fmt.Sprintf("GPU initialization failed: %v, falling back to CPU", err))
		} else {
			debugMsg("PROVIDER", "GPU test inference failed, falling back to CPU")
		}
		gpu.Close()
	}

	cpu := NewCPUProvider(pm.inputSize, pm.minConfidence, pm.nmsThreshold)
	start := time.Now()
	if err := cpu.Initialize(modelPath, configPath); err != nil {
		return errors.Wrap(err, "no inference provider available")
	}
	pm.currentProvider = cpu
	pm.providerInfo = cpu.GetProviderInfo()
	pm.providerInfo.InitTime = time.Since(start)
	debugMsg("PROVIDER", fmt.Sprintf("CPU provider initialized (%v)", pm.providerInfo.InitTime))
	return nil
}

// GetProvider returns the current active provider
func (pm *ProviderManager) GetProvider() InferenceProvider {
	return pm.currentProvider
}

// GetProviderInfo returns information about the current provider
func (pm *ProviderManager) GetProviderInfo() ProviderInfo {
	return pm.providerInfo
}

// Close closes the current provider
func (pm *ProviderManager) Close() error {
	if pm.currentProvider != nil {
		return pm.currentProvider.Close()
	}
	return nil
}

// hasGPUCapability checks for an NVIDIA card with a loaded driver. CUDA
// support in OpenCV is only proven by the test inference.
func hasGPUCapability() bool {
	out, err := exec.Command("lspci").Output()
	if err != nil || !strings.Contains(strings.ToLower(string(out)), "nvidia") {
		debugMsg("GPU_DETECT", "No NVIDIA GPU detected")
		return false
	}
	if err := exec.Command("nvidia-smi", "--query-gpu=name", "--format=csv,noheader").Run(); err != nil {
		debugMsg("GPU_DETECT", "NVIDIA drivers not loaded")
		return false
	}
	matches, _ := filepath.Glob("/dev/nvidia*")
	return len(matches) > 0
}

// testProvider performs a quick inference on a blank canonical frame
func testProvider(provider InferenceProvider, size int) bool {
	frame := gocv.NewMatWithSize(size, size, gocv.MatTypeCV8UC3)
	defer frame.Close()
	_, err := provider.Detect(frame)
	return err == nil
}
