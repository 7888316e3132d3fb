package interpreter

import (
	"context"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	maxRetries     = 10
	baseRetryDelay = 2 * time.Second
	maxRetryDelay  = 60 * time.Second
	readTimeout    = 10 * time.Second
	pingInterval   = 30 * time.Second
)

// ListenerURL is the websocket endpoint of an interpreter API at host.
func ListenerURL(host string) string {
	u := url.URL{Scheme: "ws", Host: host, Path: "/ws"}
	return u.String()
}

// StartListener connects to the interpreter API websocket and calls
// funcToCall for every reading until ctx is done or it gives up after
// maxRetries failed connection attempts in a row.
func StartListener(ctx context.Context, host string, funcToCall func(reading *Reading)) {
	listen(ctx, ListenerURL(host), baseRetryDelay, funcToCall)
}

func listen(ctx context.Context, wsURL string, retryBase time.Duration, funcToCall func(reading *Reading)) {
	logger := log.With().Str("component", "listener").Str("url", wsURL).Logger()
	retryCount := 0

	for {
		if ctx.Err() != nil {
			logger.Info().Msg("shutting down listener")
			return
		}

		if retryCount > 0 {
			delay := retryDelay(retryBase, retryCount)
			logger.Info().Msgf("retrying connection in %v (attempt %d/%d)", delay, retryCount+1, maxRetries)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				logger.Info().Msg("shutting down during retry wait")
				return
			}
		}

		dialer := *websocket.DefaultDialer
		dialer.HandshakeTimeout = 10 * time.Second
		c, _, err := dialer.DialContext(ctx, wsURL, nil)
		if err != nil {
			logger.Warn().Err(err).Msg("connection failed")
			retryCount++
			if retryCount >= maxRetries {
				logger.Error().Msgf("max retries (%d) reached, giving up", maxRetries)
				return
			}
			continue
		}

		logger.Info().Msg("connected, accepting meter readings")
		retryCount = 0

		connectionBroken := handleConnection(ctx, c, funcToCall)
		c.Close()
		if !connectionBroken {
			return
		}
		logger.Warn().Msg("connection lost, will retry")
	}
}

// retryDelay doubles per attempt up to maxRetryDelay.
func retryDelay(base time.Duration, attempt int) time.Duration {
	delay := time.Duration(1<<attempt) * base
	if delay > maxRetryDelay || delay <= 0 {
		return maxRetryDelay
	}
	return delay
}

// handleConnection reports whether the connection broke, as opposed to
// ctx being cancelled.
func handleConnection(ctx context.Context, c *websocket.Conn, funcToCall func(reading *Reading)) bool {
	done := make(chan struct{})

	// Readings arrive every second, so silence means a dead connection.
	c.SetReadDeadline(time.Now().Add(readTimeout))

	go func() {
		defer close(done)
		for {
			messageType, message, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Msg("websocket error")
				} else {
					log.Debug().Err(err).Msg("connection closed")
				}
				return
			}
			c.SetReadDeadline(time.Now().Add(readTimeout))

			if messageType != websocket.TextMessage {
				log.Debug().Msgf("ignoring message type %d", messageType)
				continue
			}
			if reading := ReadingFromJsonBytes(message); reading != nil {
				funcToCall(reading)
			} else {
				log.Warn().Str("message", string(message)).Msg("failed to parse meter reading")
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return true
		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Warn().Err(err).Msg("failed to send ping")
			}
		case <-ctx.Done():
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Debug().Err(err).Msg("error sending close message")
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return false
		}
	}
}
