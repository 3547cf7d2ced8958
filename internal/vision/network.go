// Package vision runs the compiled detector through the OpenCV DNN module.
package vision

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/IvanShishkin/buckfinder/internal/bundle"
	"github.com/IvanShishkin/buckfinder/internal/detector"
	"github.com/IvanShishkin/buckfinder/internal/vision/yolo"
	"github.com/IvanShishkin/buckfinder/pkg/models"
	"gocv.io/x/gocv"
)

const opPredict = "predict"

// ErrClosed is returned by a handle after Close
var ErrClosed = errors.New("model handle closed")

var (
	_ detector.Model  = (*Handle)(nil)
	_ bundle.Verifier = Verifier{}
)

// Handle is a loaded detector network. It is safe for concurrent use;
// forward passes are serialised.
type Handle struct {
	artifact *bundle.Artifact
	meta     *bundle.Metadata
	input    image.Point

	mu     sync.Mutex
	net    gocv.Net
	closed bool
}

// Load reads the compiled artifact into a CPU network
func Load(a *bundle.Artifact) (*Handle, error) {
	net, err := readNet(a.WeightsPath())
	if err != nil {
		return nil, models.NewError(models.CodeLoadFailed, "load model", a.Dir, err)
	}

	return &Handle{
		artifact: a,
		meta:     a.Metadata,
		input:    image.Pt(a.Metadata.Input.Width, a.Metadata.Input.Height),
		net:      net,
	}, nil
}

// readNet loads ONNX weights and pins them to the CPU target
func readNet(path string) (gocv.Net, error) {
	if _, err := os.Stat(path); err != nil {
		return gocv.Net{}, err
	}

	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		net.Close()
		return net, fmt.Errorf("failed to load network from %s", path)
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return net, fmt.Errorf("failed to set preferable backend or target")
	}
	return net, nil
}

// Location returns the directory of the loaded artifact
func (h *Handle) Location() string {
	return h.artifact.Dir
}

// Predict runs the network on the image at path and returns every detection
// that survives non-maximum suppression
func (h *Handle) Predict(path string) ([]detector.Detection, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, models.NewError(models.CodeSourceUnreadable, opPredict, path, err)
	}

	img, err := gocv.IMDecode(buf, gocv.IMReadColor)
	if err != nil {
		return nil, models.NewError(models.CodeImageDecode, opPredict, path, err)
	}
	defer img.Close()

	if img.Empty() {
		return nil, models.NewError(models.CodeImageDecode, opPredict, path, errors.New("decoded image is empty"))
	}

	// Stretch to the network input, no letterboxing or crop
	blob := gocv.BlobFromImage(img, 1.0/255.0, h.input, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	data, dims, err := h.forward(blob)
	if err != nil {
		return nil, models.NewError(models.CodeInference, opPredict, path, err)
	}

	candidates, err := yolo.Decode(data, dims, yolo.Options{
		NumClasses: h.meta.NumClasses(),
		Objectness: h.meta.Objectness,
		ScoreFloor: h.meta.ScoreFloor,
		ScaleX:     float32(img.Cols()) / float32(h.input.X),
		ScaleY:     float32(img.Rows()) / float32(h.input.Y),
	})
	if err != nil {
		return nil, models.NewError(models.CodeInference, opPredict, path, err)
	}

	return h.suppress(candidates), nil
}

// forward runs one pass and copies the output out of the network's memory
func (h *Handle) forward(blob gocv.Mat) ([]float32, []int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, nil, ErrClosed
	}

	h.net.SetInput(blob, "")
	out := h.net.Forward("")
	defer out.Close()

	if out.Empty() {
		return nil, nil, errors.New("network produced no output")
	}

	raw, err := out.DataPtrFloat32()
	if err != nil {
		return nil, nil, err
	}

	data := make([]float32, len(raw))
	copy(data, raw)
	return data, out.Size(), nil
}

// suppress applies per-class NMS and maps class ids to labels
func (h *Handle) suppress(candidates []yolo.Candidate) []detector.Detection {
	kept := yolo.SuppressPerClass(candidates, func(boxes []image.Rectangle, scores []float32) []int {
		return gocv.NMSBoxes(boxes, scores, h.meta.ScoreFloor, h.meta.NMSIoU)
	})
	if len(kept) == 0 {
		return nil
	}

	dets := make([]detector.Detection, 0, len(kept))
	for _, c := range kept {
		dets = append(dets, detector.Detection{
			Label:      h.meta.Label(c.ClassID),
			Confidence: c.Score,
		})
	}
	return dets
}

// Close releases the network. Predictions after Close fail fast.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	return h.net.Close()
}

// Verifier checks ONNX weights by loading them into a throwaway network
type Verifier struct{}

// Verify implements bundle.Verifier
func (Verifier) Verify(weightsPath string, m *bundle.Manifest) error {
	net, err := readNet(weightsPath)
	if err != nil {
		return err
	}
	defer net.Close()

	if m.Input.Width <= 0 || m.Input.Height <= 0 {
		return fmt.Errorf("invalid input size %dx%d", m.Input.Width, m.Input.Height)
	}
	return nil
}
