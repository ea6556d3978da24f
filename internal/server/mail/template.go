package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

//go:embed templates/verification_email.html
var embedded embed.FS

const embeddedName = "templates/verification_email.html"

// VerificationData is what the verification template can reference.
type VerificationData struct {
	OTP              string
	VerificationLink string
}

// TemplateSource yields the raw verification template text.
type TemplateSource interface {
	Load(ctx context.Context) (string, error)
}

type EmbeddedSource struct{}

func (EmbeddedSource) Load(context.Context) (string, error) {
	b, err := embedded.ReadFile(embeddedName)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type FileSource struct {
	Path string
}

func (s FileSource) Load(context.Context) (string, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return "", fmt.Errorf("read template %s: %w", s.Path, err)
	}
	return string(b), nil
}

type S3Config struct {
	Bucket       string
	Key          string
	Region       string
	User         string
	Password     string
	BaseEndpoint string
}

// replaced in tests
var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	getObject = func(c *s3.Client, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
		return c.GetObject(ctx, in, optFns...)
	}
)

type S3Source struct {
	cfg S3Config
}

func NewS3Source(cfg S3Config) *S3Source {
	return &S3Source{cfg: cfg}
}

func (s *S3Source) client(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.cfg.User,
			s.cfg.Password,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.cfg.BaseEndpoint)
		o.UsePathStyle = true
	}), nil
}

func (s *S3Source) Load(ctx context.Context) (string, error) {
	c, err := s.client(ctx)
	if err != nil {
		return "", fmt.Errorf("s3 config: %w", err)
	}

	out, err := getObject(c, ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.cfg.Key),
	})
	if err != nil {
		return "", fmt.Errorf("get template s3://%s/%s: %w", s.cfg.Bucket, s.cfg.Key, err)
	}
	defer out.Body.Close()

	b, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("read template body: %w", err)
	}
	return string(b), nil
}

// Renderer holds a parsed verification template.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer loads and parses the template once. Parsing errors surface at
// startup rather than on the first registration.
func NewRenderer(ctx context.Context, src TemplateSource) (*Renderer, error) {
	text, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load verification template: %w", err)
	}
	tmpl, err := template.New("verification_email").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse verification template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

func (r *Renderer) Render(data VerificationData) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render verification template: %w", err)
	}
	return buf.String(), nil
}

// DefaultRenderer parses the embedded template. It panics if the embedded
// template is malformed, which can only happen at build time.
func DefaultRenderer() *Renderer {
	r, err := NewRenderer(context.Background(), EmbeddedSource{})
	if err != nil {
		panic(err)
	}
	return r
}
