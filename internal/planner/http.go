package planner

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"SmartGrocer/internal/catalog"
	"SmartGrocer/internal/plan"
	"SmartGrocer/internal/pricing"
	"SmartGrocer/internal/session"
	"SmartGrocer/internal/share"
	"SmartGrocer/pkg/kit"
)

const (
	maxBodyBytes = 1 << 20

	defaultListName = "Shopping List"
)

type Server struct {
	Catalog  *catalog.Provider
	Sessions *session.Manager
	Tokens   *session.TokenMaker
	Share    *share.Builder
	Log      *zap.Logger

	SessionTTL time.Duration
	ShareLimit *kit.IPRateLimiter

	shareLinks prometheus.Counter
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", s.ready)

	r.Get("/catalog", s.listCatalog)
	r.Get("/catalog/{id}", s.getItem)

	r.Group(func(pr chi.Router) {
		pr.Use(WithSession(s.Sessions, s.Tokens, s.sessionTTL(), s.Log))

		pr.Get("/selection", s.getSelection)
		pr.Put("/selection", s.putSelection)
		pr.Post("/selection/toggle", s.toggle)
		pr.Post("/selection/clear", s.clearSelection)

		pr.Get("/plan", s.getPlan)
		pr.Get("/plan/onestop", s.getOneStop)

		pr.Get("/lists", s.listSaved)
		pr.Post("/lists", s.saveList)
		pr.Post("/lists/{name}/activate", s.activateList)
		pr.Post("/lists/{name}/copy", s.copyList)
		pr.Post("/lists/{name}/rename", s.renameList)
		pr.Delete("/lists/{name}", s.deleteList)

		if s.ShareLimit != nil {
			pr.With(s.ShareLimit.Middleware).Get("/share", s.shareList)
		} else {
			pr.Get("/share", s.shareList)
		}
	})

	return r
}

func (s *Server) sessionTTL() time.Duration {
	if s.SessionTTL > 0 {
		return s.SessionTTL
	}
	return 24 * time.Hour
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	if err := s.Catalog.Ping(r.Context()); err != nil {
		if s.Log != nil {
			s.Log.Warn("readyz failed", zap.Error(err))
		}
		kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready", nil)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// itemView is an Item annotated with its recomputed best price/store.
type itemView struct {
	ID              int              `json:"id"`
	Name            string           `json:"name"`
	Category        string           `json:"category,omitempty"`
	BestPriceCents  int64            `json:"best_price_cents"`
	BestStore       string           `json:"best_store,omitempty"`
	StorePriceCents map[string]int64 `json:"store_price_cents,omitempty"`
	PrevPriceCents  int64            `json:"prev_price_cents,omitempty"`
	StockStatus     string           `json:"stock_status,omitempty"`

	Alternatives []pricing.Alternative `json:"alternatives,omitempty"`
}

func toView(it catalog.Item, storeOrder []string, withAlternatives bool) itemView {
	cents, store := pricing.Best(it, storeOrder)
	v := itemView{
		ID:              it.ID,
		Name:            it.Name,
		Category:        it.Category,
		BestPriceCents:  cents,
		BestStore:       store,
		StorePriceCents: it.StorePriceCents,
		PrevPriceCents:  it.PrevPriceCents,
		StockStatus:     it.StockStatus,
	}
	if withAlternatives {
		v.Alternatives = pricing.Alternatives(it, store, storeOrder)
	}
	return v
}

func (s *Server) listCatalog(w http.ResponseWriter, r *http.Request) {
	c, ok := s.loadCatalog(w, r)
	if !ok {
		return
	}

	category := strings.TrimSpace(r.URL.Query().Get("category"))

	items := make([]itemView, 0, c.Len())
	for _, it := range c.Items() {
		if category != "" && it.Category != category {
			continue
		}
		items = append(items, toView(it, c.Stores(), false))
	}

	kit.WriteJSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"stores":     c.Stores(),
		"categories": c.Categories(),
	})
}

func (s *Server) getItem(w http.ResponseWriter, r *http.Request) {
	c, ok := s.loadCatalog(w, r)
	if !ok {
		return
	}

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad item id", nil)
		return
	}

	it, found := c.Get(id)
	if !found {
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
		return
	}

	kit.WriteJSON(w, http.StatusOK, toView(it, c.Stores(), true))
}

func (s *Server) getSelection(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusInternalServerError, "no session", nil)
		return
	}

	ids := sess.ActiveIDs()
	kit.WriteJSON(w, http.StatusOK, map[string]any{
		"ids":   ids,
		"code":  session.EncodeIDs(ids),
		"count": len(ids),
	})
}

type toggleReq struct {
	ItemID int `json:"item_id"`
}

func (s *Server) toggle(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusInternalServerError, "no session", nil)
		return
	}

	c, ok := s.loadCatalog(w, r)
	if !ok {
		return
	}

	var req toggleReq
	if err := decodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", nil)
		return
	}

	if !c.Has(req.ItemID) {
		kit.WriteError(w, r, http.StatusNotFound, "unknown item", map[string]any{"id": req.ItemID})
		return
	}

	selected := sess.Toggle(req.ItemID)
	kit.WriteJSON(w, http.StatusOK, map[string]any{
		"item_id":  req.ItemID,
		"selected": selected,
		"ids":      sess.ActiveIDs(),
	})
}

func (s *Server) clearSelection(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusInternalServerError, "no session", nil)
		return
	}

	sess.Clear()
	kit.WriteJSON(w, http.StatusOK, map[string]any{"ids": []int{}, "code": ""})
}

type applyReq struct {
	Items string `json:"items"`
}

// putSelection applies a share-link payload. Malformed tokens and IDs
// the catalog does not know are dropped, never errors; a garbage
// payload simply yields an empty selection.
func (s *Server) putSelection(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusInternalServerError, "no session", nil)
		return
	}

	c, ok := s.loadCatalog(w, r)
	if !ok {
		return
	}

	var req applyReq
	if err := decodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", nil)
		return
	}

	sess.Replace(session.DecodeIDs(req.Items), c.Has)

	ids := sess.ActiveIDs()
	kit.WriteJSON(w, http.StatusOK, map[string]any{
		"ids":  ids,
		"code": session.EncodeIDs(ids),
	})
}

func (s *Server) getPlan(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusInternalServerError, "no session", nil)
		return
	}

	c, ok := s.loadCatalog(w, r)
	if !ok {
		return
	}

	p := plan.Aggregate(c, sess.ActiveIDs())
	kit.WriteJSON(w, http.StatusOK, map[string]any{
		"groups":            p.Groups,
		"grand_total_cents": p.GrandTotalCents,
		"stores_to_visit":   len(p.Groups),
	})
}

func (s *Server) getOneStop(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusInternalServerError, "no session", nil)
		return
	}

	c, ok := s.loadCatalog(w, r)
	if !ok {
		return
	}

	ids := sess.ActiveIDs()
	kit.WriteJSON(w, http.StatusOK, map[string]any{
		"options":          plan.EvaluateStores(c, ids),
		"best_total_cents": plan.Aggregate(c, ids).GrandTotalCents,
	})
}

func (s *Server) listSaved(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusInternalServerError, "no session", nil)
		return
	}

	kit.WriteJSON(w, http.StatusOK, sess.Lists())
}

type saveReq struct {
	Name string `json:"name"`
}

func (s *Server) saveList(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusInternalServerError, "no session", nil)
		return
	}

	var req saveReq
	if err := decodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", nil)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		kit.WriteError(w, r, http.StatusBadRequest, "name required", nil)
		return
	}

	kit.WriteJSON(w, http.StatusCreated, sess.Save(req.Name))
}

func (s *Server) activateList(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusInternalServerError, "no session", nil)
		return
	}

	c, ok := s.loadCatalog(w, r)
	if !ok {
		return
	}

	name := chi.URLParam(r, "name")
	if err := sess.Activate(name, c.Has); err != nil {
		s.writeRegistryError(w, r, err, name)
		return
	}

	ids := sess.ActiveIDs()
	kit.WriteJSON(w, http.StatusOK, map[string]any{"name": name, "ids": ids})
}

func (s *Server) copyList(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusInternalServerError, "no session", nil)
		return
	}

	name := chi.URLParam(r, "name")
	derived, err := sess.Copy(name, forceParam(r))
	if err != nil {
		s.writeRegistryError(w, r, err, name)
		return
	}

	kit.WriteJSON(w, http.StatusCreated, map[string]any{"name": derived})
}

type renameReq struct {
	NewName string `json:"new_name"`
}

func (s *Server) renameList(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusInternalServerError, "no session", nil)
		return
	}

	var req renameReq
	if err := decodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", nil)
		return
	}

	req.NewName = strings.TrimSpace(req.NewName)
	if req.NewName == "" {
		kit.WriteError(w, r, http.StatusBadRequest, "new_name required", nil)
		return
	}

	name := chi.URLParam(r, "name")
	if err := sess.Rename(name, req.NewName, forceParam(r)); err != nil {
		s.writeRegistryError(w, r, err, name)
		return
	}

	kit.WriteJSON(w, http.StatusOK, map[string]any{"name": req.NewName})
}

func (s *Server) deleteList(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusInternalServerError, "no session", nil)
		return
	}

	name := chi.URLParam(r, "name")
	if err := sess.Delete(name); err != nil {
		s.writeRegistryError(w, r, err, name)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// shareList renders the share payloads for the active selection, or for
// a saved list when ?name= is given.
func (s *Server) shareList(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusInternalServerError, "no session", nil)
		return
	}

	c, ok := s.loadCatalog(w, r)
	if !ok {
		return
	}

	name := defaultListName
	ids := sess.ActiveIDs()

	if q := strings.TrimSpace(r.URL.Query().Get("name")); q != "" {
		saved, err := sess.Get(q)
		if err != nil {
			s.writeRegistryError(w, r, err, q)
			return
		}
		name = saved.Name
		ids = saved.IDs
	}

	p := plan.Aggregate(c, ids)

	if s.shareLinks != nil {
		s.shareLinks.Inc()
	}

	kit.WriteJSON(w, http.StatusOK, map[string]any{
		"name":   name,
		"url":    s.Share.Link(ids),
		"sms":    s.Share.SMSLink(name, p),
		"mailto": s.Share.MailtoLink(name, p),
		"text":   share.Text(name, p),
	})
}

func (s *Server) loadCatalog(w http.ResponseWriter, r *http.Request) (*catalog.Catalog, bool) {
	c, err := s.Catalog.Get(r.Context())
	if err != nil {
		if s.Log != nil {
			s.Log.Error("catalog load failed", zap.Error(err))
		}
		kit.WriteError(w, r, http.StatusServiceUnavailable, "catalog unavailable", nil)
		return nil, false
	}
	return c, true
}

func (s *Server) writeRegistryError(w http.ResponseWriter, r *http.Request, err error, name string) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		kit.WriteError(w, r, http.StatusNotFound, "no such list", map[string]any{"name": name})
	case errors.Is(err, session.ErrConflict):
		kit.WriteError(w, r, http.StatusConflict, "list name already exists", map[string]any{"name": name})
	default:
		if s.Log != nil {
			s.Log.Error("registry operation failed", zap.Error(err), zap.String("name", name))
		}
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}

func forceParam(r *http.Request) bool {
	v := r.URL.Query().Get("force")
	return v == "1" || v == "true"
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
