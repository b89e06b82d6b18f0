package authflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/teemow/dida365-mcp/internal/credentials"
	"github.com/teemow/dida365-mcp/internal/instrumentation"
	"github.com/teemow/dida365-mcp/internal/logging"
)

// ServeHTTP routes requests on the callback listener. Only GET on the
// callback path is served; everything else is 404 or 405.
func (f *Flow) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

	path := f.cfg.CallbackPath()
	switch {
	case r.URL.Path != path:
		http.Error(sw, "Not Found", http.StatusNotFound)
	case r.Method != http.MethodGet:
		sw.Header().Set("Allow", http.MethodGet)
		http.Error(sw, "Method Not Allowed", http.StatusMethodNotAllowed)
	default:
		f.handleCallback(sw, r)
	}

	f.metrics.RecordHTTPRequest(r.Context(), r.Method, instrumentation.RoutePath(r.URL.Path, path), sw.status, time.Since(start))
}

// handleCallback runs the whole exchange, persist and respond sequence under
// f.mu so that concurrent callbacks are processed one at a time.
func (f *Flow) handleCallback(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ctx := r.Context()
	mode := f.mode.String()
	q := r.URL.Query()

	if providerErr := q.Get("error"); providerErr != "" {
		desc := q.Get("error_description")
		f.logger.Warn("Authorization was rejected by the provider",
			logging.KeyMode, mode, "provider_error", providerErr, "description", desc)
		f.metrics.RecordOAuthAuth(ctx, mode, instrumentation.OAuthResultRejected)
		detail := providerErr
		if desc != "" {
			detail = providerErr + ": " + desc
		}
		render(w, http.StatusBadRequest, page{
			Title:      f.mode.title(),
			Heading:    "Authorization failed",
			Paragraphs: []string{"The provider returned an error. Open the authorization URL again to retry."},
			Detail:     detail,
		})
		return
	}

	code := q.Get("code")
	if code == "" {
		f.logger.Warn("Callback without authorization code", logging.KeyMode, mode)
		f.metrics.RecordOAuthAuth(ctx, mode, instrumentation.OAuthResultRejected)
		render(w, http.StatusBadRequest, page{
			Title:      f.mode.title(),
			Heading:    "Missing authorization code",
			Paragraphs: []string{"The callback did not include a code parameter. Open the authorization URL again to retry."},
		})
		return
	}

	// Only callbacks carrying a code reach this, also after success.
	if f.session.Handled() {
		f.logger.Info("Ignoring callback, token already stored", logging.KeyMode, mode)
		render(w, http.StatusOK, page{
			Title:      f.mode.title(),
			Heading:    "Already completed",
			Paragraphs: []string{"A token was already obtained in this session. You can close this window."},
		})
		return
	}

	state := q.Get("state")
	switch {
	case state == "":
		f.logger.Warn("Callback without state parameter, accepting", logging.KeyMode, mode)
	case !f.session.StateMatches(state):
		f.logger.Warn("Callback state does not match this session", logging.KeyMode, mode)
		f.metrics.RecordOAuthAuth(ctx, mode, instrumentation.OAuthResultRejected)
		render(w, http.StatusBadRequest, page{
			Title:      f.mode.title(),
			Heading:    "State mismatch",
			Paragraphs: []string{"This callback belongs to a different authorization attempt. Use the URL printed by the running command."},
		})
		return
	}

	token, err := f.exchange(ctx, code)
	if err != nil {
		f.metrics.RecordOAuthAuth(ctx, mode, instrumentation.OAuthResultFailure)
		f.renderExchangeFailure(w, err)
		return
	}

	if err := f.store.Set(credentials.KeyToken, token.BearerValue()); err != nil {
		f.logger.Error("Failed to store access token", logging.KeyMode, mode, logging.KeyError, err)
		f.metrics.RecordOAuthAuth(ctx, mode, instrumentation.OAuthResultFailure)
		render(w, http.StatusInternalServerError, page{
			Title:      f.mode.title(),
			Heading:    "Could not save the token",
			Paragraphs: []string{"The token was issued but could not be written. Check the credential file and retry."},
			Detail:     err.Error(),
		})
		return
	}

	f.session.MarkHandled()
	f.metrics.RecordOAuthAuth(ctx, mode, instrumentation.OAuthResultSuccess)
	f.logger.Info("Access token stored",
		logging.KeyMode, mode,
		"token", logging.SanitizeToken(token.AccessToken),
		"expires_in", token.ExpiresIn)

	render(w, http.StatusOK, page{
		Title:   f.mode.title(),
		Heading: f.mode.successHeading(),
		Paragraphs: []string{
			"The access token has been saved. You can close this window.",
			fmt.Sprintf("The local listener stops in %s.", f.cfg.ShutdownDelay),
		},
	})
	f.scheduleShutdown()
}

func (f *Flow) exchange(ctx context.Context, code string) (*Token, error) {
	ctx, span := instrumentation.StartOAuthExchangeSpan(ctx, f.mode.String())
	defer span.End()

	start := time.Now()
	token, err := f.exchanger.Exchange(ctx, code)
	if err == nil && token.AccessToken == "" {
		err = &ExchangeError{StatusCode: http.StatusOK, Err: errors.New("response missing access_token")}
	}
	if err != nil {
		f.metrics.RecordOAuthExchange(ctx, instrumentation.OAuthResultFailure, time.Since(start))
		instrumentation.SetSpanError(span, err)
		return nil, err
	}

	f.metrics.RecordOAuthExchange(ctx, instrumentation.OAuthResultSuccess, time.Since(start))
	instrumentation.SetSpanSuccess(span)
	return token, nil
}

func (f *Flow) renderExchangeFailure(w http.ResponseWriter, err error) {
	p := page{
		Title:      f.mode.title(),
		Heading:    "Token exchange failed",
		Paragraphs: []string{"Nothing was saved. Open the authorization URL again to retry."},
		Detail:     err.Error(),
	}

	var xe *ExchangeError
	if errors.As(err, &xe) {
		f.logger.Error("Token exchange failed",
			logging.KeyMode, f.mode.String(),
			logging.KeyStatus, xe.StatusCode,
			"body", xe.Body,
			"timeout", xe.Timeout(),
			logging.KeyError, xe.Err)
		switch {
		case xe.StatusCode > 0:
			p.Paragraphs = append(p.Paragraphs, fmt.Sprintf("The token endpoint answered with HTTP %d.", xe.StatusCode))
			p.Detail = xe.Body
		case xe.Timeout():
			p.Paragraphs = append(p.Paragraphs, "The token endpoint did not answer in time.")
		}
	} else {
		f.logger.Error("Token exchange failed", logging.KeyMode, f.mode.String(), logging.KeyError, err)
	}

	render(w, http.StatusInternalServerError, p)
}

func (f *Flow) scheduleShutdown() {
	f.taskMu.Lock()
	defer f.taskMu.Unlock()
	if f.shutdownTask != nil {
		return
	}
	f.shutdownTask = f.scheduler.AfterFunc(f.cfg.ShutdownDelay, f.finish)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
