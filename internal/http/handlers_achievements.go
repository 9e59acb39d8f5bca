package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"finflare/internal/core"
	"finflare/internal/log"
	"finflare/internal/session"
)

const maxVoiceBody = 4 << 10

type achievementsView struct {
	Achievements []core.Achievement
	Leaderboard  []core.LeaderboardEntry
	Points       int
	Unlocked     int
}

func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request, st *session.Store) {
	var view achievementsView
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		view.Achievements, err = session.Fetch(ctx, st, s.backend.Achievements)
		return err
	})
	g.Go(func() (err error) {
		view.Leaderboard, err = session.Fetch(ctx, st, s.backend.Leaderboard)
		return err
	})
	if err := g.Wait(); err != nil {
		s.backendFailed(w, r, st, log.OpRead, err)
		return
	}
	view.Points = core.Points(view.Achievements)
	for _, a := range view.Achievements {
		if a.Unlocked {
			view.Unlocked++
		}
	}
	s.render(w, r, st, http.StatusOK, "achievements", "Achievements", view)
}

type voiceView struct {
	Command  string
	Response string
	Navigate string
}

// voiceAction is the part of a reply action the assistant acts on.
type voiceAction struct {
	Type   string `json:"type"`
	Target string `json:"target"`
}

// navigateTarget returns a local path the reply asks to open, if any.
func navigateTarget(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var a voiceAction
	if err := json.Unmarshal(raw, &a); err != nil {
		return ""
	}
	if !strings.EqualFold(a.Type, "navigate") || !strings.HasPrefix(a.Target, "/") || strings.HasPrefix(a.Target, "//") {
		return ""
	}
	return a.Target
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// handleVoice forwards a typed or dictated command to the assistant.
func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request, st *session.Store) {
	p := NewRequestBodyParser(r, maxVoiceBody)
	if err := p.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	command := strings.TrimSpace(p.Get("command"))
	if command == "" {
		UnprocessableEntityError("Please say or type a command").Write(w)
		return
	}

	reply, err := session.Fetch(r.Context(), st, func(ctx context.Context) (core.VoiceReply, error) {
		return s.backend.ProcessVoice(ctx, command)
	})
	if err != nil {
		s.backendFailed(w, r, st, "voice", err)
		return
	}
	log.FromContext(r.Context()).DebugContext(r.Context(), "Voice command processed", "command", command)

	if p.IsJSON() || wantsJSON(r) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(reply)
		return
	}
	s.fragment(w, r, st, "voice", "voice_reply", voiceView{
		Command:  command,
		Response: reply.Response,
		Navigate: navigateTarget(reply.Action),
	}, nil)
}
