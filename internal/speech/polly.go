package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog/log"
)

// Polly defaults.
const (
	DefaultPollyRegion = "ap-south-1"
	DefaultPollyVoice  = "Kajal"
	DefaultPollyEngine = "neural"
	DefaultTimeout     = 10 * time.Second

	// Polly rejects longer plain-text requests.
	maxPollyChars = 3000
)

type synthClient interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// PollyConfig configures the Amazon Polly TTS.
type PollyConfig struct {
	Region  string
	VoiceID string
	Engine  string
	Timeout time.Duration
}

// Polly synthesizes English replies with an en-IN voice. Polly has no Tamil
// voice, so Tamil requests return nil.
type Polly struct {
	mu     sync.Mutex
	client synthClient
	cfg    PollyConfig
}

// NewPolly creates a Polly TTS. AWS credentials are resolved lazily on first
// use from the default chain.
func NewPolly(cfg PollyConfig) *Polly {
	return NewPollyWithClient(cfg, nil)
}

// NewPollyWithClient creates a Polly TTS over an existing client.
func NewPollyWithClient(cfg PollyConfig, client synthClient) *Polly {
	cfg.Region = defaultString(cfg.Region, DefaultPollyRegion)
	cfg.VoiceID = defaultString(cfg.VoiceID, DefaultPollyVoice)
	cfg.Engine = defaultString(cfg.Engine, DefaultPollyEngine)
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Polly{client: client, cfg: cfg}
}

// Synthesize implements TTS. Failures are logged and yield nil.
func (p *Polly) Synthesize(ctx context.Context, text, lang string) []byte {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if lang != LangEnglish {
		log.Debug().Str("lang", lang).Msg("polly has no voice for language")
		return nil
	}
	if len(text) > maxPollyChars {
		text = text[:maxPollyChars]
	}

	client, err := p.resolveClient(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("polly unavailable")
		return nil
	}

	engine := pollytypes.EngineStandard
	if strings.EqualFold(p.cfg.Engine, "neural") {
		engine = pollytypes.EngineNeural
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	output, err := client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Engine:       engine,
		LanguageCode: pollytypes.LanguageCodeEnIn,
		OutputFormat: pollytypes.OutputFormatMp3,
		Text:         aws.String(text),
		TextType:     pollytypes.TextTypeText,
		VoiceId:      pollytypes.VoiceId(p.cfg.VoiceID),
	})
	if err != nil {
		log.Warn().Err(err).Str("reason", failureReason(err)).Msg("polly synthesis failed")
		return nil
	}
	if output == nil || output.AudioStream == nil {
		log.Warn().Str("reason", "provider_empty_audio").Msg("polly synthesis failed")
		return nil
	}
	defer output.AudioStream.Close()

	audio, err := io.ReadAll(output.AudioStream)
	if err != nil {
		log.Warn().Err(err).Str("reason", "provider_stream_error").Msg("polly synthesis failed")
		return nil
	}
	if len(audio) == 0 {
		return nil
	}
	return audio
}

// failureReason classifies a Polly error for logs.
func failureReason(err error) string {
	if errors.Is(err, context.Canceled) {
		return "provider_cancelled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "provider_timeout"
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "TooManyRequestsException", "ThrottlingException":
			return "provider_overload"
		case "InvalidSsmlException", "TextLengthExceededException", "LexiconNotFoundException",
			"MarksNotSupportedForFormatException", "InvalidSampleRateException", "EngineNotSupportedException":
			return "provider_client_error"
		default:
			return "provider_server_error"
		}
	}
	return "provider_transport_error"
}

func defaultString(v string, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func (p *Polly) resolveClient(ctx context.Context) (synthClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(p.cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	p.client = polly.NewFromConfig(awsCfg)
	return p.client, nil
}
