package server

import (
	"encoding/json"
	"io"
	"net/http"

	"vcp_verifier/internal/policy"
	"vcp_verifier/internal/verify"
)

// Handler serves verification requests over HTTP. The engine is stateless,
// so one handler serves concurrent verifications of independent packs.
type Handler struct {
	Engine      *verify.Engine
	RuleTable   policy.RuleTable
	DefaultPack string
}

type verifyRequest struct {
	PackDir string `json:"pack_dir"`
	Tier    string `json:"tier,omitempty"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// Verify runs a full verification of the named pack directory. The HTTP
// status reflects whether verification ran, not the verdict; the verdict is
// in the report body.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload("invalid body"))
		return
	}
	var req verifyRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorPayload("invalid json"))
			return
		}
	}
	if req.PackDir == "" {
		req.PackDir = h.DefaultPack
	}
	if req.PackDir == "" {
		writeJSON(w, http.StatusBadRequest, errorPayload("pack_dir required"))
		return
	}

	engine := h.Engine
	if req.Tier != "" {
		tier, err := policy.ParseTier(req.Tier)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorPayload(err.Error()))
			return
		}
		engine = verify.New(verify.Config{Tier: tier, Rules: h.RuleTable})
	}

	report, err := engine.VerifyDir(r.Context(), req.PackDir)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorPayload(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Tiers exposes the active tier rule table.
func (h *Handler) Tiers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.RuleTable)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorPayload(msg string) map[string]interface{} {
	return map[string]interface{}{"error": msg}
}
