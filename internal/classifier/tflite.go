package classifier

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tphakala/go-tflite"
	"github.com/tphakala/go-tflite/delegates/xnnpack"

	"github.com/sawring/sawring/internal/conf"
	"github.com/sawring/sawring/internal/cpuspec"
	"github.com/sawring/sawring/internal/errors"
	"github.com/sawring/sawring/internal/features"
	"github.com/sawring/sawring/internal/logger"
)

// TFLite runs a TensorFlow Lite gesture model.
type TFLite struct {
	mu          sync.Mutex
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
	labels      Labels
	inputLen    int
}

// NewTFLite loads the model at settings.ModelPath and checks that its
// input holds inputShape elements and its output one value per label.
func NewTFLite(settings conf.ClassifierSettings, labels Labels, inputShape []int) (*TFLite, error) {
	start := time.Now()

	data, err := os.ReadFile(settings.ModelPath)
	if err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryModelLoad).
			Context("model_path", settings.ModelPath).
			Build()
	}

	model := tflite.NewModel(data)
	if model == nil {
		return nil, errors.Newf("cannot load TensorFlow Lite model").
			Component("classifier").
			Category(errors.CategoryModelInit).
			Context("model_path", settings.ModelPath).
			Context("model_size_kb", len(data)/1024).
			Timing("model-init", time.Since(start)).
			Build()
	}

	threads := cpuspec.Get().ThreadCount(settings.Threads)
	options := tflite.NewInterpreterOptions()
	log := GetLogger()
	if settings.XNNPACK {
		delegate := xnnpack.New(xnnpack.DelegateOptions{NumThreads: int32(threads)}) //nolint:gosec // G115: bounded by cpuspec.MaxInferenceThreads
		if delegate == nil {
			log.Warn("failed to create XNNPACK delegate, falling back to default CPU")
			options.SetNumThread(threads)
		} else {
			options.AddDelegate(delegate)
			options.SetNumThread(1)
		}
	} else {
		options.SetNumThread(threads)
	}
	options.SetErrorReporter(func(msg string, _ any) {
		GetLogger().Error("TFLite error", logger.String("message", msg))
	}, nil)

	c := &TFLite{model: model, options: options, labels: labels}
	c.interpreter = tflite.NewInterpreter(model, options)
	if c.interpreter == nil {
		c.release()
		return nil, initError("cannot create interpreter", settings.ModelPath)
	}
	if status := c.interpreter.AllocateTensors(); status != tflite.OK {
		c.release()
		return nil, initError("tensor allocation failed", settings.ModelPath)
	}

	if err := c.checkShapes(inputShape); err != nil {
		c.release()
		return nil, err
	}

	log.Info("gesture model initialized",
		logger.String("model", filepath.Base(settings.ModelPath)),
		logger.Int("threads", threads),
		logger.Bool("xnnpack", settings.XNNPACK),
		logger.Int("labels", len(labels.Classes)),
		logger.Duration("load_time", time.Since(start)))
	return c, nil
}

func initError(msg, path string) error {
	return errors.Newf("%s", msg).
		Component("classifier").
		Category(errors.CategoryModelInit).
		Context("model_path", path).
		Build()
}

func (c *TFLite) checkShapes(inputShape []int) error {
	input := c.interpreter.GetInputTensor(0)
	output := c.interpreter.GetOutputTensor(0)
	if input == nil || output == nil {
		return initError("model has no input or output tensor", "")
	}

	want := 1
	for _, d := range inputShape {
		want *= d
	}
	got := len(input.Float32s())
	if got != want {
		return errors.Newf("model input holds %d values, feature tensor has %d", got, want).
			Component("classifier").
			Category(errors.CategoryModelInit).
			Context("input_shape", inputShape).
			Build()
	}
	c.inputLen = got

	classes := output.Dim(output.NumDims() - 1)
	if classes != len(c.labels.Classes) {
		return errors.Newf("model predicts %d classes, label set has %d", classes, len(c.labels.Classes)).
			Component("classifier").
			Category(errors.CategoryLabelLoad).
			Build()
	}
	return nil
}

// Predict runs one inference.
func (c *TFLite) Predict(t features.Tensor) (Prediction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.interpreter == nil {
		return Prediction{}, errors.Newf("interpreter closed").
			Component("classifier").
			Category(errors.CategoryClassifierUnavailable).
			Build()
	}
	if len(t.Data) != c.inputLen {
		return Prediction{}, errors.Newf("tensor has %d values, model expects %d", len(t.Data), c.inputLen).
			Component("classifier").
			Category(errors.CategoryValidation).
			Build()
	}

	copy(c.interpreter.GetInputTensor(0).Float32s(), t.Data)
	if status := c.interpreter.Invoke(); status != tflite.OK {
		return Prediction{}, errors.Newf("tensor invoke failed: %v", status).
			Component("classifier").
			Category(errors.CategoryClassifierUnavailable).
			Build()
	}

	out := c.interpreter.GetOutputTensor(0)
	raw := make([]float32, out.Dim(out.NumDims()-1))
	copy(raw, out.Float32s())
	return Decide(c.labels, raw)
}

func (c *TFLite) Labels() Labels  { return c.labels }
func (c *TFLite) Available() bool { return true }

// Close releases the interpreter.
func (c *TFLite) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.release()
	return nil
}

func (c *TFLite) release() {
	if c.interpreter != nil {
		c.interpreter.Delete()
		c.interpreter = nil
	}
	if c.options != nil {
		c.options.Delete()
		c.options = nil
	}
	if c.model != nil {
		c.model.Delete()
		c.model = nil
	}
}
