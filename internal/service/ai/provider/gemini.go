package provider

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

// Gemini talks to the Gemini API through the genai SDK.
type Gemini struct {
	client *genai.Client
	cfg    Config
}

// NewGemini builds a Gemini API client.
func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	if cfg.APIKey == "" || cfg.Model == "" {
		return nil, errors.New("gemini provider needs an api key and a model")
	}
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &Gemini{client: client, cfg: cfg}, nil
}

func (g *Gemini) request(input []*schema.Message, opts []model.Option) (string, []*genai.Content, *genai.GenerateContentConfig) {
	options := g.cfg.options(opts)
	system, contents := toGeminiContents(input)

	cfg := &genai.GenerateContentConfig{
		Temperature:   options.Temperature,
		TopP:          options.TopP,
		StopSequences: options.Stop,
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if options.MaxTokens != nil {
		cfg.MaxOutputTokens = int32(*options.MaxTokens)
	}
	return *options.Model, contents, cfg
}

// Generate returns the full completion.
func (g *Gemini) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	name, contents, cfg := g.request(input, opts)
	res, err := g.client.Models.GenerateContent(ctx, name, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}
	return schema.AssistantMessage(res.Text(), nil), nil
}

// Stream forwards response chunks as they arrive.
func (g *Gemini) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	name, contents, cfg := g.request(input, opts)

	sr, sw := schema.Pipe[*schema.Message](8)
	go func() {
		defer sw.Close()
		for res, err := range g.client.Models.GenerateContentStream(ctx, name, contents, cfg) {
			if err != nil {
				log.Printf("[ai] gemini stream error: %v", err)
				sw.Send(nil, err)
				return
			}
			text := res.Text()
			if text == "" {
				continue
			}
			if closed := sw.Send(schema.AssistantMessage(text, nil), nil); closed {
				return
			}
		}
	}()
	return sr, nil
}

// toGeminiContents folds system messages into one instruction and maps the
// remaining roles onto user and model turns.
func toGeminiContents(input []*schema.Message) (string, []*genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(input))
	for _, msg := range input {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			system = append(system, msg.Content)
		case schema.Assistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}
