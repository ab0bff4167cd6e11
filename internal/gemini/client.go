// Package gemini talks to the Gemini API: it splits passages into
// sentences, looks up words, and synthesizes speech.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/dgnsrekt/engrepeat/internal/lesson"
	"github.com/dgnsrekt/engrepeat/internal/pcm"
)

// Defaults for Config fields left empty.
const (
	DefaultTextModel         = "gemini-3-flash-preview"
	DefaultSpeechModel       = "gemini-2.5-flash-preview-tts"
	DefaultVoice             = "Kore"
	DefaultRequestsPerMinute = 30
)

var (
	// ErrMissingAPIKey is returned when no API key is configured.
	ErrMissingAPIKey = errors.New("gemini API key is not set (GEMINI_API_KEY)")

	// ErrNoAudio is returned when a speech response carries no inline audio.
	ErrNoAudio = errors.New("response contains no audio")
)

// Config configures a Client.
type Config struct {
	APIKey            string
	TextModel         string
	SpeechModel       string
	Voice             string
	BaseURL           string
	RequestsPerMinute int
	HTTPClient        *http.Client
}

// Observer receives the result of every API call.
type Observer interface {
	ObserveRequest(operation string, err error, elapsed time.Duration)
}

// Client is a rate-limited Gemini API client.
type Client struct {
	genai       *genai.Client
	textModel   string
	speechModel string
	voice       string
	limiter     *rate.Limiter
	observer    Observer
}

// NewClient creates a Client. It makes no network calls.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.TextModel == "" {
		cfg.TextModel = DefaultTextModel
	}
	if cfg.SpeechModel == "" {
		cfg.SpeechModel = DefaultSpeechModel
	}
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = DefaultRequestsPerMinute
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	gc, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Client{
		genai:       gc,
		textModel:   cfg.TextModel,
		speechModel: cfg.SpeechModel,
		voice:       cfg.Voice,
		limiter:     rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
	}, nil
}

// SetObserver registers o for request outcomes.
func (c *Client) SetObserver(o Observer) {
	c.observer = o
}

var sentenceSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"text":        {Type: genai.TypeString, Description: "The original English sentence"},
			"translation": {Type: genai.TypeString, Description: "Vietnamese translation"},
			"phonetic":    {Type: genai.TypeString, Description: "IPA pronunciation for the whole sentence"},
		},
		Required: []string{"text", "translation", "phonetic"},
	},
}

var wordSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"word":        {Type: genai.TypeString},
		"translation": {Type: genai.TypeString},
		"phonetic":    {Type: genai.TypeString},
	},
	Required: []string{"word", "translation", "phonetic"},
}

// Split asks the text model to break passage into sentences with a
// Vietnamese translation and IPA for each. An unparseable answer is
// reported as lesson.ErrMalformedResponse.
func (c *Client) Split(ctx context.Context, passage string) ([]lesson.Draft, error) {
	prompt := fmt.Sprintf("Split the following English text into individual sentences. "+
		"For each sentence, provide its Vietnamese translation and its International Phonetic "+
		"Alphabet (IPA) pronunciation for the whole sentence. Return as a clean JSON array of objects. "+
		"Text: \"%s\"", passage)

	body, err := c.generateJSON(ctx, "split", prompt, sentenceSchema)
	if err != nil {
		return nil, err
	}

	var drafts []lesson.Draft
	if err := json.Unmarshal([]byte(body), &drafts); err != nil {
		return nil, fmt.Errorf("%w: %v", lesson.ErrMalformedResponse, err)
	}
	return drafts, nil
}

// Lookup asks the text model for a word's translation and IPA.
func (c *Client) Lookup(ctx context.Context, word string) (lesson.WordInfo, error) {
	prompt := fmt.Sprintf("Provide the Vietnamese translation and international phonetic "+
		"alphabet (IPA) for the English word: \"%s\".", word)

	body, err := c.generateJSON(ctx, "lookup", prompt, wordSchema)
	if err != nil {
		return lesson.WordInfo{}, err
	}

	var info lesson.WordInfo
	if err := json.Unmarshal([]byte(body), &info); err != nil {
		return lesson.WordInfo{}, fmt.Errorf("%w: %v", lesson.ErrMalformedResponse, err)
	}
	return info, nil
}

// Synthesize returns raw 16-bit little-endian mono PCM at 24kHz for text.
func (c *Client) Synthesize(ctx context.Context, text string) (data []byte, err error) {
	start := time.Now()
	defer func() { c.observe("speech", err, start) }()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: c.voice},
			},
		},
	}

	resp, err := c.genai.Models.GenerateContent(ctx, c.speechModel, genai.Text(text), config)
	if err != nil {
		return nil, fmt.Errorf("speech request failed: %w", err)
	}

	data = inlineAudio(resp)
	if len(data) == 0 {
		return nil, ErrNoAudio
	}
	if verr := pcm.Validate(data, pcm.DefaultFormat()); verr != nil {
		log.Debug("Speech payload is not whole PCM frames", "error", verr)
	}

	log.Debug("Speech synthesized",
		"model", c.speechModel,
		"bytes", len(data),
		"duration", pcm.Duration(len(data), pcm.DefaultFormat()))
	return data, nil
}

func (c *Client) generateJSON(ctx context.Context, op, prompt string, schema *genai.Schema) (body string, err error) {
	start := time.Now()
	defer func() { c.observe(op, err, start) }()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}

	resp, err := c.genai.Models.GenerateContent(ctx, c.textModel, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("%s request failed: %w", op, err)
	}

	log.Debug("Text model answered", "operation", op, "model", c.textModel, "elapsed", time.Since(start))
	return stripFences(resp.Text()), nil
}

func (c *Client) observe(op string, err error, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveRequest(op, err, time.Since(start))
	}
}

// inlineAudio returns the first part's inline data, if any.
func inlineAudio(resp *genai.GenerateContentResponse) []byte {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return nil
	}
	part := content.Parts[0]
	if part == nil || part.InlineData == nil {
		return nil
	}
	return part.InlineData.Data
}

// stripFences removes a markdown code fence some models wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
