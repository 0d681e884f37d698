package detection

import (
	"lanecam/vehicle"

	"gocv.io/x/gocv"
)

// GPUProvider implements YOLO inference using OpenCV CUDA backend
type GPUProvider struct {
	yolo yoloNet
}

// NewGPUProvider creates an uninitialised GPU provider
func NewGPUProvider(inputSize int, minConfidence, nmsThreshold float64) *GPUProvider {
	return &GPUProvider{yolo: yoloNet{inputSize: inputSize, minConfidence: minConfidence, nmsThreshold: nmsThreshold}}
}

// Initialize loads the network on the CUDA backend
func (gp *GPUProvider) Initialize(modelPath, configPath string) error {
	return gp.yolo.load(modelPath, configPath, gocv.NetBackendCUDA, gocv.NetTargetCUDA)
}

// Detect performs object detection on a frame using GPU
func (gp *GPUProvider) Detect(frame gocv.Mat) ([]vehicle.Detection, error) {
	return gp.yolo.detect(frame)
}

// Close releases resources used by the GPU provider
func (gp *GPUProvider) Close() error {
	return gp.yolo.close()
}

// GetProviderInfo returns information about the GPU provider
func (gp *GPUProvider) GetProviderInfo() ProviderInfo {
	return ProviderInfo{
		Type:         "GPU",
		Backend:      "OpenCV CUDA",
		Device:       "NVIDIA GPU",
		EstimatedFPS: 200,
	}
}
