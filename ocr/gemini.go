package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/example/uidcheckbot/logger"
)

const extractPrompt = "Extract all text from this image, especially focusing on UIDs and balance amounts. " +
	"Include UID/User ID numbers, balance amounts with currency symbols, and all visible numbers and labels. " +
	"Return the extracted text in a clean, readable format."

const inspectPrompt = "You are a digital forensics analyst verifying screenshot authenticity. " +
	"Analyze this image for signs of digital editing or manipulation: compression artifact inconsistencies, " +
	"font rendering mismatches, misaligned UI elements, copy-paste evidence. " +
	"Answer in this EXACT format:\n" +
	"AUTHENTICITY: [GENUINE/SUSPICIOUS/EDITED]\n" +
	"CONFIDENCE: [0-100]%\n" +
	"EVIDENCE: [comma separated signs found]"

// Client calls the Gemini generateContent endpoint for OCR and screenshot
// authenticity checks. Both are treated as opaque best-effort oracles.
type Client struct {
	apiKey   string
	endpoint string
	http     *http.Client
}

func NewClient(apiKey, endpoint string, timeout time.Duration) *Client {
	return &Client{
		apiKey:   apiKey,
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Contents []struct {
		Parts []part `json:"parts"`
	} `json:"contents"`
	GenerationConfig struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

func (c *Client) generate(ctx context.Context, prompt string, image []byte) (string, error) {
	var reqBody generateRequest
	reqBody.Contents = make([]struct {
		Parts []part `json:"parts"`
	}, 1)
	reqBody.Contents[0].Parts = []part{
		{Text: prompt},
		{InlineData: &inlineData{
			MimeType: "image/jpeg",
			Data:     base64.StdEncoding.EncodeToString(image),
		}},
	}
	reqBody.GenerationConfig.Temperature = 0.1
	reqBody.GenerationConfig.MaxOutputTokens = 2048

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint+"?key="+c.apiKey, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini api status %d", resp.StatusCode)
	}

	type res struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	var r res
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", err
	}
	if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return strings.TrimSpace(r.Candidates[0].Content.Parts[0].Text), nil
}

// ExtractText runs OCR over the image. An empty string means the oracle
// could not read anything; callers treat that as a soft failure.
func (c *Client) ExtractText(ctx context.Context, image []byte) (string, error) {
	text, err := c.generate(ctx, extractPrompt, image)
	if err != nil {
		return "", err
	}
	logger.Log.Debugw("ocr extracted", "chars", len(text))
	return text, nil
}

// Verdict is the parsed authenticity analysis for a screenshot.
type Verdict struct {
	Edited     bool
	Confidence int
	Evidence   []string
	Analysis   string
}

var (
	authPattern = regexp.MustCompile(`(?i)AUTHENTICITY:\s*(\w+)`)
	confPattern = regexp.MustCompile(`CONFIDENCE:\s*(\d+)`)
	evidPattern = regexp.MustCompile(`(?is)EVIDENCE:\s*(.+)$`)
)

// Inspect asks the model whether the screenshot looks digitally edited.
// Failures lean genuine: verification should not be blocked by a flaky
// forensics call.
func (c *Client) Inspect(ctx context.Context, image []byte) (Verdict, error) {
	analysis, err := c.generate(ctx, inspectPrompt, image)
	if err != nil || analysis == "" {
		return Verdict{}, err
	}
	return ParseVerdict(analysis), nil
}

// ParseVerdict extracts the structured fields from the model's analysis text.
func ParseVerdict(analysis string) Verdict {
	v := Verdict{Analysis: analysis}
	if m := authPattern.FindStringSubmatch(analysis); m != nil {
		verdict := strings.ToUpper(m[1])
		v.Edited = verdict == "SUSPICIOUS" || verdict == "EDITED"
	}
	if m := confPattern.FindStringSubmatch(analysis); m != nil {
		v.Confidence, _ = strconv.Atoi(m[1])
	}
	if m := evidPattern.FindStringSubmatch(analysis); m != nil {
		for _, item := range strings.Split(m[1], ",") {
			if item = strings.TrimSpace(item); item != "" {
				v.Evidence = append(v.Evidence, item)
			}
		}
	}
	return v
}
