package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/apperrors"
	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/models"
)

const defaultUploadEndpoint = "https://www.googleapis.com/upload/youtube/v3/videos"

// ChunkResult reports what the remote confirmed after a chunk send or a
// session query.
type ChunkResult struct {
	// Done is true once the remote has the whole file and issued a video id.
	Done    bool
	VideoID string
	// ConfirmedOffset is the next byte the remote expects.
	ConfirmedOffset int64
}

// RemoteHost abstracts the byte-range-addressable resumable protocol so the
// engine is not tied to one provider.
type RemoteHost interface {
	// StartSession declares total size and metadata and returns the session
	// URL all further requests target.
	StartSession(ctx context.Context, accessToken string, meta models.VideoMetadata, size int64, mimeType string) (string, error)
	// SendChunk uploads one contiguous byte range.
	SendChunk(ctx context.Context, sessionURL, accessToken string, chunk io.Reader, offset, length, total int64) (ChunkResult, error)
	// QueryOffset asks the remote how many bytes it has confirmed, used to
	// resume after a disconnect.
	QueryOffset(ctx context.Context, sessionURL, accessToken string, total int64) (ChunkResult, error)
}

// Client drives YouTube's resumable upload protocol.
type Client struct {
	httpClient     *http.Client
	uploadEndpoint string
}

func NewClient(timeout time.Duration) *Client {
	return NewClientWithEndpoint(defaultUploadEndpoint, timeout)
}

// NewClientWithEndpoint exists so tests can point the client at a fake API.
func NewClientWithEndpoint(endpoint string, timeout time.Duration) *Client {
	return &Client{
		httpClient:     &http.Client{Timeout: timeout},
		uploadEndpoint: endpoint,
	}
}

// Request/response shapes for the videos.insert resource.
type videoResource struct {
	Snippet videoSnippet `json:"snippet"`
	Status  videoStatus  `json:"status"`
}

type videoSnippet struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	CategoryID  string   `json:"categoryId"`
}

type videoStatus struct {
	PrivacyStatus           string `json:"privacyStatus"`
	SelfDeclaredMadeForKids bool   `json:"selfDeclaredMadeForKids"`
	PublishAt               string `json:"publishAt,omitempty"`
}

type videoInsertResponse struct {
	ID string `json:"id"`
}

func (c *Client) StartSession(ctx context.Context, accessToken string, meta models.VideoMetadata, size int64, mimeType string) (string, error) {
	resource := videoResource{
		Snippet: videoSnippet{
			Title:       meta.Title,
			Description: meta.Description,
			Tags:        meta.Tags,
			CategoryID:  meta.CategoryID,
		},
		Status: videoStatus{
			PrivacyStatus:           meta.PrivacyStatus,
			SelfDeclaredMadeForKids: meta.MadeForKids,
		},
	}

	// A scheduled video must be private until YouTube publishes it.
	if meta.PublishAt != nil {
		resource.Status.PrivacyStatus = "private"
		resource.Status.PublishAt = meta.PublishAt.UTC().Format(time.RFC3339)
	}

	body, err := json.Marshal(resource)
	if err != nil {
		return "", fmt.Errorf("failed to marshal video resource: %w", err)
	}

	url := c.uploadEndpoint + "?uploadType=resumable&part=snippet,status"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create session request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Upload-Content-Length", strconv.FormatInt(size, 10))
	req.Header.Set("X-Upload-Content-Type", mimeType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperrors.Transientf("session initiation request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", c.statusError(resp)
	}

	sessionURL := resp.Header.Get("Location")
	if sessionURL == "" {
		return "", fmt.Errorf("%w: no upload URL returned", apperrors.ErrInternal)
	}
	return sessionURL, nil
}

func (c *Client) SendChunk(ctx context.Context, sessionURL, accessToken string, chunk io.Reader, offset, length, total int64) (ChunkResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, sessionURL, chunk)
	if err != nil {
		return ChunkResult{}, fmt.Errorf("failed to create chunk request: %w", err)
	}
	req.ContentLength = length
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Range",
		fmt.Sprintf("bytes %d-%d/%d", offset, offset+length-1, total))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ChunkResult{}, apperrors.Transientf("chunk upload request failed: %v", err)
	}
	defer resp.Body.Close()

	return c.handleSessionResponse(resp, offset+length, total)
}

func (c *Client) QueryOffset(ctx context.Context, sessionURL, accessToken string, total int64) (ChunkResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, sessionURL, http.NoBody)
	if err != nil {
		return ChunkResult{}, fmt.Errorf("failed to create status query request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Range", fmt.Sprintf("bytes */%d", total))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ChunkResult{}, apperrors.Transientf("session status query failed: %v", err)
	}
	defer resp.Body.Close()

	return c.handleSessionResponse(resp, 0, total)
}

// handleSessionResponse interprets a resumable-session response.
// 308 means the remote wants more bytes and reports the confirmed range;
// 200/201 means the upload is complete and carries the video resource.
func (c *Client) handleSessionResponse(resp *http.Response, inferredOffset, total int64) (ChunkResult, error) {
	switch resp.StatusCode {
	case 308: // Resume Incomplete
		confirmed := inferredOffset
		if rangeHeader := resp.Header.Get("Range"); rangeHeader != "" {
			parsed, err := parseRangeEnd(rangeHeader)
			if err != nil {
				return ChunkResult{}, fmt.Errorf("%w: unparseable Range header %q", apperrors.ErrInternal, rangeHeader)
			}
			confirmed = parsed
		}
		io.Copy(io.Discard, resp.Body)
		return ChunkResult{ConfirmedOffset: confirmed}, nil

	case http.StatusOK, http.StatusCreated:
		var video videoInsertResponse
		if err := json.NewDecoder(resp.Body).Decode(&video); err != nil {
			return ChunkResult{}, fmt.Errorf("failed to decode final upload response: %w", err)
		}
		if video.ID == "" {
			return ChunkResult{}, fmt.Errorf("%w: upload finished without a video id", apperrors.ErrInternal)
		}
		return ChunkResult{Done: true, VideoID: video.ID, ConfirmedOffset: total}, nil

	case http.StatusNotFound, http.StatusGone:
		// The remote session lapsed; it cannot be regenerated.
		return ChunkResult{}, fmt.Errorf("%w: upload session no longer exists", apperrors.ErrInternal)

	default:
		return ChunkResult{}, c.statusError(resp)
	}
}

// googleErrorBody is the error envelope Google APIs return.
type googleErrorBody struct {
	Error struct {
		Errors []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
		Message string `json:"message"`
	} `json:"error"`
}

// statusError maps an unexpected HTTP status to the pipeline error taxonomy.
func (c *Client) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return apperrors.ErrAuthRejected

	case resp.StatusCode == http.StatusForbidden:
		var parsed googleErrorBody
		if err := json.Unmarshal(body, &parsed); err == nil {
			for _, e := range parsed.Error.Errors {
				switch e.Reason {
				case "quotaExceeded", "uploadLimitExceeded", "dailyLimitExceeded":
					return apperrors.ErrQuotaExceeded
				}
			}
		}
		return apperrors.ErrAuthRejected

	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidMetadata, strings.TrimSpace(string(body)))

	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return apperrors.Transientf("remote returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))

	default:
		return fmt.Errorf("remote returned unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

// parseRangeEnd extracts the next expected offset from a confirmed-range
// header of the form "bytes=0-12345" (next offset is 12346).
func parseRangeEnd(rangeHeader string) (int64, error) {
	value := strings.TrimPrefix(rangeHeader, "bytes=")
	idx := strings.LastIndex(value, "-")
	if idx < 0 {
		return 0, fmt.Errorf("malformed range %q", rangeHeader)
	}
	end, err := strconv.ParseInt(value[idx+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed range %q: %w", rangeHeader, err)
	}
	return end + 1, nil
}
