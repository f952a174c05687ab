package validation

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/kballard/go-shellquote"
	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/codegate/pkg/models"
)

//go:embed profiles/*.yaml
var builtinProfiles embed.FS

// Profile describes the toolchain used to generate and validate one kind
// of artifact.
type Profile struct {
	Name string `yaml:"name"`
	// Filename is the artifact's path inside the sandbox and in the
	// published change.
	Filename string `yaml:"filename"`
	// LanguageTags are stripped when they appear alone on the first line of
	// generated output.
	LanguageTags []string `yaml:"language_tags"`
	// Prompt is a text/template rendered with {{.Instruction}}.
	Prompt string `yaml:"prompt"`
	// InstallHint is shown when the presence check fails.
	InstallHint string `yaml:"install_hint"`
	// Stages holds one text/template command per stage, rendered with a
	// shell-quoted {{.File}}.
	Stages StageCommands `yaml:"stages"`
}

// StageCommands holds the command template for each stage.
type StageCommands struct {
	Install  string `yaml:"install"`
	Presence string `yaml:"presence"`
	Format   string `yaml:"format"`
	Test     string `yaml:"test"`
	Execute  string `yaml:"execute"`
}

// Get returns the command template for name.
func (s StageCommands) Get(name models.StageName) string {
	switch name {
	case models.StageInstall:
		return s.Install
	case models.StagePresence:
		return s.Presence
	case models.StageFormat:
		return s.Format
	case models.StageTest:
		return s.Test
	case models.StageExecute:
		return s.Execute
	default:
		return ""
	}
}

// LoadProfile loads a built-in profile by name.
func LoadProfile(name string) (*Profile, error) {
	data, err := builtinProfiles.ReadFile("profiles/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown toolchain profile %q", name)
	}
	return parseProfile(data)
}

// LoadProfileFile loads a profile from a YAML file.
func LoadProfileFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	return parseProfile(data)
}

func parseProfile(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks that every stage has a command and that all templates parse.
func (p *Profile) Validate() error {
	if p.Filename == "" {
		return errors.New("profile: filename is required")
	}
	if strings.Contains(p.Filename, "\n") {
		return errors.New("profile: filename must be a single line")
	}
	for _, name := range models.StageOrder {
		cmd := p.Stages.Get(name)
		if strings.TrimSpace(cmd) == "" {
			return fmt.Errorf("profile %s: stage %s has no command", p.Name, name)
		}
		if _, err := template.New(string(name)).Parse(cmd); err != nil {
			return fmt.Errorf("profile %s: stage %s: %w", p.Name, name, err)
		}
	}
	if _, err := template.New("prompt").Parse(p.Prompt); err != nil {
		return fmt.Errorf("profile %s: prompt: %w", p.Name, err)
	}
	return nil
}

// Command renders the command for stage against file.
func (p *Profile) Command(stage models.StageName, file string) (string, error) {
	tmpl, err := template.New(string(stage)).Parse(p.Stages.Get(stage))
	if err != nil {
		return "", fmt.Errorf("stage %s: %w", stage, err)
	}

	var buf bytes.Buffer
	data := struct{ File string }{File: shellquote.Join(file)}
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("stage %s: %w", stage, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// RenderPrompt renders the generation prompt for instruction.
func (p *Profile) RenderPrompt(instruction string) (string, error) {
	if strings.TrimSpace(p.Prompt) == "" {
		return instruction, nil
	}
	tmpl, err := template.New("prompt").Parse(p.Prompt)
	if err != nil {
		return "", fmt.Errorf("prompt: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct{ Instruction string }{instruction}); err != nil {
		return "", fmt.Errorf("prompt: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
