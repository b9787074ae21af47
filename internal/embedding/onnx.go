//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/ragkit/internal/models"
	"github.com/hyperjump/ragkit/pkg/utils"
	ort "github.com/yalue/onnxruntime_go"
)

// ONNXEmbedder runs a sentence-transformer export through ONNX Runtime.
// It requires cgo and the onnxruntime shared library.
type ONNXEmbedder struct {
	session    *ort.AdvancedSession
	dimensions int
	maxTokens  int
	timeout    time.Duration
	cache      *EmbeddingCache
	tokenizer  Tokenizer
	// Tensors are bound to the session once; each run rewrites the inputs in place.
	inputIDsTensor      *ort.Tensor[int64]
	attentionMaskTensor *ort.Tensor[int64]
	tokenTypeIDsTensor  *ort.Tensor[int64]
	outputTensor        *ort.Tensor[float32]
	// sem is a one-slot semaphore guarding the session. The inference goroutine releases it.
	sem chan struct{}
}

// NewONNXEmbedder loads the model at cfg.ModelPath.
func NewONNXEmbedder(cfg ModelConfig, dimensions, cacheSize int) (*ONNXEmbedder, error) {
	cfg = cfg.withDefaults()
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("%w: onnx runtime requires model_path", models.ErrConfiguration)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("%w: initialize onnx runtime: %w", models.ErrEmbeddingBackend, err)
		}
	}

	shape := ort.NewShape(1, int64(cfg.MaxTokens))
	var tensors []interface{ Destroy() error }
	cleanup := func() {
		for _, t := range tensors {
			_ = t.Destroy()
		}
	}

	tokenizer := &SimpleTokenizer{}
	inputIDs, attentionMask, tokenTypeIDs := tokenizer.Tokenize("", cfg.MaxTokens)
	inputIDsTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("create input_ids tensor: %w", err)
	}
	tensors = append(tensors, inputIDsTensor)
	attentionMaskTensor, err := ort.NewTensor(shape, attentionMask)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("create attention_mask tensor: %w", err)
	}
	tensors = append(tensors, attentionMaskTensor)
	tokenTypeIDsTensor, err := ort.NewTensor(shape, tokenTypeIDs)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("create token_type_ids tensor: %w", err)
	}
	tensors = append(tensors, tokenTypeIDsTensor)
	outputTensor, err := ort.NewTensor(ort.NewShape(1, int64(dimensions)), make([]float32, dimensions))
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}
	tensors = append(tensors, outputTensor)

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"output"},
		[]ort.ArbitraryTensor{inputIDsTensor, attentionMaskTensor, tokenTypeIDsTensor},
		[]ort.ArbitraryTensor{outputTensor},
		nil,
	)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("%w: create onnx session for %s: %w", models.ErrEmbeddingBackend, cfg.ModelPath, err)
	}

	return &ONNXEmbedder{
		session:             session,
		dimensions:          dimensions,
		maxTokens:           cfg.MaxTokens,
		timeout:             cfg.Timeout,
		cache:               NewEmbeddingCache(cacheSize),
		tokenizer:           tokenizer,
		inputIDsTensor:      inputIDsTensor,
		attentionMaskTensor: attentionMaskTensor,
		tokenTypeIDsTensor:  tokenTypeIDsTensor,
		outputTensor:        outputTensor,
		sem:                 make(chan struct{}, 1),
	}, nil
}

type inference struct {
	vec []float32
	err error
}

// Embed returns the embedding for text, using the cache when possible.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := acquire(ctx, e.sem); err != nil {
		return nil, err
	}
	done := make(chan inference, 1)
	go func() {
		defer release(e.sem)
		done <- e.run(text)
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, classifyError(res.err)
		}
		e.cache.Set(text, res.vec)
		return res.vec, nil
	case <-ctx.Done():
		return nil, classifyError(ctx.Err())
	}
}

// run must be called holding e.sem.
func (e *ONNXEmbedder) run(text string) inference {
	inputIDs, attentionMask, tokenTypeIDs := e.tokenizer.Tokenize(text, e.maxTokens)
	copy(e.inputIDsTensor.GetData(), inputIDs)
	copy(e.attentionMaskTensor.GetData(), attentionMask)
	copy(e.tokenTypeIDsTensor.GetData(), tokenTypeIDs)

	if err := e.session.Run(); err != nil {
		return inference{err: fmt.Errorf("inference failed: %w", err)}
	}
	vec := make([]float32, e.dimensions)
	copy(vec, e.outputTensor.GetData())
	utils.NormalizeL2(vec)
	return inference{vec: vec}
}

// EmbedBatch embeds texts in order. Inference is serialized on the session.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int {
	return e.dimensions
}

// Backend returns BackendModel.
func (e *ONNXEmbedder) Backend() string {
	return BackendModel
}

// Close destroys the session and tensors.
func (e *ONNXEmbedder) Close() error {
	e.sem <- struct{}{}
	defer release(e.sem)
	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	if e.outputTensor != nil {
		_ = e.inputIDsTensor.Destroy()
		_ = e.attentionMaskTensor.Destroy()
		_ = e.tokenTypeIDsTensor.Destroy()
		_ = e.outputTensor.Destroy()
	}
	e.inputIDsTensor, e.attentionMaskTensor, e.tokenTypeIDsTensor, e.outputTensor = nil, nil, nil, nil
	return err
}
