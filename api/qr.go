package api

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/openclaw/qrkit/qr"
	"github.com/openclaw/qrkit/render"
	"github.com/openclaw/qrkit/session"
)

// renderRequest is a parsed /qr.* query.
type renderRequest struct {
	opts    qr.Options
	svg     render.SVGOptions
	padding float64
}

// parseRenderRequest reads the render query parameters on top of the
// server defaults: payload, ecl, size, clear, overlay, overlay_size, fg, bg,
// loading, frame, error and padding.
func (s *Server) parseRenderRequest(r *http.Request) (renderRequest, error) {
	q := r.URL.Query()
	d := s.Defaults

	req := renderRequest{
		opts: qr.Options{
			Payload:     q.Get("payload"),
			Level:       d.Level,
			Size:        d.Size,
			ClearArea:   queryBool(r, "clear", d.ClearArea),
			Overlay:     queryBool(r, "overlay", false),
			OverlaySize: d.OverlaySize,
			Foreground:  d.Foreground,
			Background:  d.Background,
			Loading:     queryBool(r, "loading", false),
		},
		padding: d.Padding,
	}

	if v := q.Get("ecl"); v != "" {
		level, err := qr.ParseLevel(v)
		if err != nil {
			return req, err
		}
		req.opts.Level = level
	}
	var err error
	if req.opts.Size, err = queryFloat(r, "size", req.opts.Size); err != nil {
		return req, err
	}
	if req.opts.OverlaySize, err = queryFloat(r, "overlay_size", req.opts.OverlaySize); err != nil {
		return req, err
	}
	if req.padding, err = queryFloat(r, "padding", req.padding); err != nil {
		return req, err
	}
	if err := s.checkBounds(req.opts.Size, req.padding); err != nil {
		return req, err
	}
	if v := q.Get("fg"); v != "" {
		req.opts.Foreground = v
	}
	if v := q.Get("bg"); v != "" {
		req.opts.Background = v
	}

	req.svg = render.SVGOptions{
		Padding: req.padding,
		Frame:   queryBool(r, "frame", false),
		Error:   queryBool(r, "error", false),
	}
	return req, nil
}

// checkBounds rejects sizes and paddings the PNG path would have to allocate
// unreasonably large canvases for.
func (s *Server) checkBounds(size, padding float64) error {
	limit := s.Defaults.MaxSize
	if limit <= 0 {
		limit = DefaultMaxSize
	}
	if size > limit {
		return fmt.Errorf("%w: size %v exceeds %v", qr.ErrInvalidGeometry, size, limit)
	}
	if !(padding >= 0 && padding <= limit) {
		return fmt.Errorf("%w: padding %v out of range [0, %v]", qr.ErrInvalidGeometry, padding, limit)
	}
	return nil
}

func queryFloat(r *http.Request, key string, defaultVal float64) (float64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", qr.ErrInvalidGeometry, key, v)
	}
	return f, nil
}

// renderScene parses the request and renders it, writing a 400 on bad input.
func (s *Server) renderScene(w http.ResponseWriter, r *http.Request) (*qr.Scene, renderRequest, bool) {
	req, err := s.parseRenderRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, req, false
	}
	scene, err := s.Renderer.Render(req.opts)
	if err != nil {
		if errors.Is(err, qr.ErrInvalidGeometry) {
			writeError(w, http.StatusBadRequest, err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return nil, req, false
	}
	return scene, req, true
}

func (s *Server) handleQRSVG(w http.ResponseWriter, r *http.Request) {
	scene, req, ok := s.renderScene(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("X-QR-Placeholder", strconv.FormatBool(scene.Placeholder))
	w.WriteHeader(http.StatusOK)
	if err := render.WriteSVG(w, scene, req.svg); err != nil {
		s.Log.Warn("svg write failed", "error", err)
	}
}

func (s *Server) handleQRPNG(w http.ResponseWriter, r *http.Request) {
	scene, req, ok := s.renderScene(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := render.WritePNG(&buf, scene, req.padding); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-QR-Placeholder", strconv.FormatBool(scene.Placeholder))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (s *Server) handleQRLayout(w http.ResponseWriter, r *http.Request) {
	scene, _, ok := s.renderScene(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, scene)
}

type qrDataResponse struct {
	Status         string `json:"status"`
	SessionID      string `json:"session_id,omitempty"`
	URI            string `json:"uri,omitempty"`
	QRSVG          string `json:"qr_svg,omitempty"`
	Placeholder    bool   `json:"placeholder"`
	Address        string `json:"address,omitempty"`
	DisplayAddress string `json:"display_address,omitempty"`
}

// handleQRData reports the state of a pairing session for the link page:
// the QR for waiting sessions, the wallet for connected ones and an error
// framed placeholder for expired ones. Without ?session= the current waiting
// session is used.
func (s *Server) handleQRData(w http.ResponseWriter, r *http.Request) {
	var (
		sess *session.Session
		err  error
	)
	if id := r.URL.Query().Get("session"); id != "" {
		sess, err = s.Sessions.Get(r.Context(), id)
	} else {
		sess, err = s.Sessions.Current(r.Context())
	}

	resp := qrDataResponse{Status: "idle"}
	opts := s.defaultOptions()
	svgOpts := render.SVGOptions{Padding: s.Defaults.Padding, Frame: true}

	switch {
	case errors.Is(err, session.ErrNotFound):
		if r.URL.Query().Get("session") != "" {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		opts.Loading = true
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	default:
		resp.Status = string(sess.Status)
		resp.SessionID = sess.ID
		switch sess.Status {
		case session.StatusConnected:
			resp.Address = sess.Address
			resp.DisplayAddress = sess.DisplayAddress
			writeJSON(w, http.StatusOK, resp)
			return
		case session.StatusExpired:
			opts.Loading = true
			svgOpts.Error = true
		default:
			resp.URI = sess.URI
			opts.Payload = sess.URI
		}
	}

	scene, err := s.Renderer.Render(opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp.Placeholder = scene.Placeholder
	resp.QRSVG = base64.StdEncoding.EncodeToString([]byte(render.SVG(scene, svgOpts)))
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) defaultOptions() qr.Options {
	d := s.Defaults
	return qr.Options{
		Level:       d.Level,
		Size:        d.Size,
		ClearArea:   d.ClearArea,
		OverlaySize: d.OverlaySize,
		Foreground:  d.Foreground,
		Background:  d.Background,
	}
}

func (s *Server) handleQRPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(qrPageHTML))
}

const qrPageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>qrkit - Connect Wallet</title>
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
    background: #0a0a0a;
    color: #e0e0e0;
    display: flex;
    justify-content: center;
    align-items: center;
    min-height: 100vh;
  }
  .card {
    background: #1a1a1a;
    border: 1px solid #333;
    border-radius: 16px;
    padding: 48px;
    text-align: center;
    max-width: 460px;
    width: 100%;
  }
  h1 { font-size: 20px; font-weight: 600; margin-bottom: 8px; }
  .subtitle { color: #888; font-size: 14px; margin-bottom: 32px; }
  #qr-container {
    width: 300px; height: 300px;
    margin: 0 auto 24px;
    display: flex;
    align-items: center;
    justify-content: center;
    background: #fff;
    border-radius: 12px;
  }
  #qr-container img { width: 300px; height: 300px; }
  #status { font-size: 14px; color: #888; margin-top: 8px; }
  .connected {
    color: #4ade80 !important;
    font-size: 18px !important;
    font-weight: 600;
  }
  .expired { color: #f87171 !important; }
  #wallet { color: #4ade80; font-size: 14px; margin-top: 4px; }
  button {
    margin-top: 16px;
    background: #333; color: #e0e0e0;
    border: 0; border-radius: 8px;
    padding: 8px 16px; cursor: pointer;
  }
</style>
</head>
<body>
<div class="card">
  <h1>Connect Wallet</h1>
  <p class="subtitle">Scan with a mobile wallet to connect</p>
  <div id="qr-container"></div>
  <div id="status"></div>
  <div id="wallet"></div>
  <button id="copy" hidden>Copy link</button>
</div>
<script>
(function() {
  var container = document.getElementById('qr-container');
  var statusEl = document.getElementById('status');
  var walletEl = document.getElementById('wallet');
  var copyBtn = document.getElementById('copy');
  var session = new URLSearchParams(location.search).get('session') || '';
  var currentImg = null;
  var currentURI = '';

  function clearChildren(el) {
    while (el.firstChild) el.removeChild(el.firstChild);
  }

  function showQR(svg) {
    if (!currentImg) {
      currentImg = document.createElement('img');
      currentImg.setAttribute('alt', 'QR Code');
      clearChildren(container);
      container.appendChild(currentImg);
    }
    currentImg.setAttribute('src', 'data:image/svg+xml;base64,' + svg);
  }

  copyBtn.addEventListener('click', function() {
    if (currentURI && navigator.clipboard) navigator.clipboard.writeText(currentURI);
  });

  function poll() {
    var url = '/qr/data' + (session ? '?session=' + encodeURIComponent(session) : '');
    fetch(url)
      .then(function(r) { return r.json(); })
      .then(function(data) {
        if (data.status === 'connected') {
          clearChildren(container);
          var checkmark = document.createElement('span');
          checkmark.className = 'connected';
          checkmark.textContent = '✓';
          container.appendChild(checkmark);
          currentImg = null;
          statusEl.className = 'connected';
          statusEl.textContent = 'Connected';
          walletEl.textContent = data.display_address || '';
          copyBtn.hidden = true;
          return;
        }
        if (data.qr_svg) showQR(data.qr_svg);
        currentURI = data.uri || '';
        copyBtn.hidden = !currentURI;
        if (data.status === 'expired') {
          statusEl.className = 'expired';
          statusEl.textContent = 'Connection request expired';
        } else if (data.placeholder) {
          statusEl.className = '';
          statusEl.textContent = 'Waiting for connection link...';
        } else {
          statusEl.className = '';
          statusEl.textContent = 'Scan this QR code with your wallet';
        }
      })
      .catch(function() {
        statusEl.textContent = 'Connection error, retrying...';
      });
  }

  poll();
  setInterval(poll, 3000);
})();
</script>
</body>
</html>`
