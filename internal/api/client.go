// Package api is the HTTP client for the posts API.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"resty.dev/v3"

	"feedsync/internal/model"
)

const (
	postsPath      = "/api/posts"
	defaultTimeout = 30 * time.Second
	userAgent      = "feedsync/1.0"
)

// SinceLayout is the format of the since query parameter.
const SinceLayout = time.RFC3339Nano

var validate = validator.New()

// TransportError reports a network-level failure of an API call.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ValidationError reports a non-2xx response, carrying the server message.
type ValidationError struct {
	Status  int
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server rejected request: status %d", e.Status)
	}
	return fmt.Sprintf("server rejected request: status %d: %s", e.Status, e.Message)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Client talks to the posts API.
type Client struct {
	client *resty.Client
}

// New creates a Client for the server at baseURL.
func New(baseURL string) *Client {
	return NewWithTimeout(baseURL, defaultTimeout)
}

// NewWithTimeout creates a Client with a custom per-request timeout.
func NewWithTimeout(baseURL string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json").
		SetResponseBodyUnlimitedReads(true)
	return &Client{client: c}
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) r(ctx context.Context) *resty.Request {
	return c.client.R().WithContext(ctx)
}

// ListPosts returns the full feed, newest first.
func (c *Client) ListPosts(ctx context.Context) ([]model.Post, error) {
	return list("list posts", c.r(ctx))
}

// ListPostsSince returns posts created after since, newest first.
func (c *Client) ListPostsSince(ctx context.Context, since time.Time) ([]model.Post, error) {
	req := c.r(ctx).SetQueryParam("since", since.UTC().Format(SinceLayout))
	return list("list posts since", req)
}

func list(op string, req *resty.Request) ([]model.Post, error) {
	var posts []model.Post
	res, err := req.
		SetResult(&posts).
		SetError(&errorBody{}).
		SetExpectResponseContentType("application/json").
		Get(postsPath)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	if !res.IsSuccess() {
		return nil, rejection(res)
	}
	return posts, nil
}

// CreatePost submits a new post as a multipart form and returns the stored record.
func (c *Client) CreatePost(ctx context.Context, form model.SubmitForm) (*model.Post, error) {
	if err := validate.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, &ValidationError{
				Status:  http.StatusBadRequest,
				Message: fmt.Sprintf("%s failed %s=%s", verrs[0].Field(), verrs[0].Tag(), verrs[0].Param()),
			}
		}
		return nil, fmt.Errorf("validate form: %w", err)
	}

	var post model.Post
	req := c.r(ctx).
		SetMultipartFormData(map[string]string{
			"username": form.Username,
			"content":  form.Content,
		}).
		SetResult(&post).
		SetError(&errorBody{}).
		SetExpectResponseContentType("application/json")
	if form.HasImage() {
		req.SetFileReader("image", form.ImageName, form.Image)
	}

	res, err := req.Post(postsPath)
	if err != nil {
		return nil, &TransportError{Op: "create post", Err: err}
	}
	if !res.IsSuccess() {
		return nil, rejection(res)
	}
	if post.ID == "" {
		return nil, &ValidationError{Status: res.StatusCode(), Message: "response carries no post id"}
	}
	return &post, nil
}

func rejection(res *resty.Response) *ValidationError {
	verr := &ValidationError{Status: res.StatusCode()}
	if body, ok := res.Error().(*errorBody); ok && body != nil {
		verr.Message = body.Error
		if verr.Message == "" {
			verr.Message = body.Message
		}
	}
	if verr.Message == "" {
		msg := res.String()
		if len(msg) > 300 {
			msg = msg[:300] + "..."
		}
		verr.Message = msg
	}
	return verr
}
