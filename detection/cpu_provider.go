package detection

import (
	"lanecam/vehicle"

	"gocv.io/x/gocv"
)

// CPUProvider implements YOLO inference using OpenCV CPU backend
type CPUProvider struct {
	yolo yoloNet
}

// NewCPUProvider creates an uninitialised CPU provider
func NewCPUProvider(inputSize int, minConfidence, nmsThreshold float64) *CPUProvider {
	return &CPUProvider{yolo: yoloNet{inputSize: inputSize, minConfidence: minConfidence, nmsThreshold: nmsThreshold}}
}

// Initialize loads the network on the default OpenCV backend
func (cp *CPUProvider) Initialize(modelPath, configPath string) error {
	return cp.yolo.load(modelPath, configPath, gocv.NetBackendDefault, gocv.NetTargetCPU)
}

// Detect performs object detection on a frame using CPU
func (cp *CPUProvider) Detect(frame gocv.Mat) ([]vehicle.Detection, error) {
	return cp.yolo.detect(frame)
}

// Close releases resources used by the CPU provider
func (cp *CPUProvider) Close() error {
	return cp.yolo.close()
}

// GetProviderInfo returns information about the CPU provider
func (cp *CPUProvider) GetProviderInfo() ProviderInfo {
	return ProviderInfo{
		Type:         "CPU",
		Backend:      "OpenCV CPU",
		Device:       "CPU",
		EstimatedFPS: 15,
	}
}
