package web

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"telegram-classifieds-bot/internal/domain"
	"telegram-classifieds-bot/internal/domain/model"
	"telegram-classifieds-bot/internal/infra/metrics"
	"telegram-classifieds-bot/internal/infra/payment"
)

// ===== Robokassa callbacks =====

type callbackParams struct {
	outSum    string
	invID     int64
	signature string
	shpUserID string
}

func parseCallback(r *http.Request) (callbackParams, error) {
	_ = r.ParseForm()
	invID, err := strconv.ParseInt(r.Form.Get("InvId"), 10, 64)
	if err != nil {
		return callbackParams{}, fmt.Errorf("bad InvId: %w", err)
	}
	return callbackParams{
		outSum:    r.Form.Get("OutSum"),
		invID:     invID,
		signature: r.Form.Get("SignatureValue"),
		shpUserID: r.Form.Get("Shp_user_id"),
	}, nil
}

// handleResult is the server-to-server notification. Robokassa retries until
// it receives "OK{InvId}", so an already-processed invoice answers OK again.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, err := parseCallback(r)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if !s.gateway.VerifyResultSignature(p.outSum, strconv.FormatInt(p.invID, 10), p.signature, p.shpUserID) {
		s.log.Warn().Int64("inv_id", p.invID).Msg("result callback with bad signature")
		metrics.IncPayment("rejected")
		http.Error(w, "bad sign", http.StatusBadRequest)
		return
	}

	inv, err := s.payments.FindByInvID(ctx, nil, p.invID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "unknown invoice", http.StatusBadRequest)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if inv.Status == model.PaymentStatusSucceeded {
		fmt.Fprintf(w, "OK%d", p.invID)
		return
	}

	amount, err := payment.ParseAmount(p.outSum)
	if err != nil || !amount.Equal(inv.Amount) {
		s.log.Warn().Int64("inv_id", p.invID).Str("out_sum", p.outSum).Msg("callback amount mismatch")
		http.Error(w, "amount mismatch", http.StatusBadRequest)
		return
	}

	paidAt := time.Now().UTC()
	if err := s.payments.UpdateStatus(ctx, nil, p.invID, model.PaymentStatusSucceeded, &paidAt); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if _, err := s.ledger.Deposit(ctx, inv.UserID, inv.Amount, inv.Currency, &inv.ID, "Пополнение через Robokassa"); err != nil {
		s.log.Error().Err(err).Int64("inv_id", p.invID).Msg("deposit after payment failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	metrics.IncPayment("succeeded")
	fmt.Fprintf(w, "OK%d", p.invID)
}

func (s *Server) handleSuccess(w http.ResponseWriter, r *http.Request) {
	p, err := parseCallback(r)
	if err != nil {
		s.renderHTML(w, http.StatusBadRequest, false, "Некорректный запрос")
		return
	}
	if !s.gateway.VerifySuccessSignature(p.outSum, strconv.FormatInt(p.invID, 10), p.signature, p.shpUserID) {
		s.renderHTML(w, http.StatusBadRequest, false, "Не удалось проверить подпись платежа")
		return
	}
	s.renderHTML(w, http.StatusOK, true, fmt.Sprintf("Платёж на %s ₽ принят. Баланс пополнится в течение минуты.", p.outSum))
}

func (s *Server) handleFail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, err := parseCallback(r)
	if err != nil {
		s.renderHTML(w, http.StatusBadRequest, false, "Некорректный запрос")
		return
	}
	if inv, err := s.payments.FindByInvID(ctx, nil, p.invID); err == nil && inv.Status == model.PaymentStatusPending {
		if err := s.payments.UpdateStatus(ctx, nil, p.invID, model.PaymentStatusFailed, nil); err != nil {
			s.log.Warn().Err(err).Int64("inv_id", p.invID).Msg("failed to mark payment failed")
		} else {
			metrics.IncPayment("failed")
		}
	}
	s.renderHTML(w, http.StatusOK, false, "Платёж отменён. Средства не списаны.")
}

var page = template.Must(template.New("cb").Parse(`<!doctype html>
<html lang="ru">
<head>
<meta charset="utf-8" />
<meta name="viewport" content="width=device-width,initial-scale=1" />
<title>{{if .OK}}Оплата прошла{{else}}Результат оплаты{{end}}</title>
<style>
body{font-family:system-ui,Arial,sans-serif;margin:2rem;}
.card{max-width:560px;border:1px solid #ddd;border-radius:12px;padding:24px;}
.ok{color:#057a55} .fail{color:#b00020}
.btn{display:inline-block;margin-top:16px;padding:10px 16px;border-radius:8px;border:1px solid #888;text-decoration:none}
</style>
</head>
<body>
<div class="card">
  <h2 class="{{if .OK}}ok{{else}}fail{{end}}">{{if .OK}}✅ Оплата прошла{{else}}⚠️ Платёж не завершён{{end}}</h2>
  <p>{{.Msg}}</p>
  {{if .BotUsername}}
    <a class="btn" href="https://t.me/{{.BotUsername}}">Вернуться в Telegram</a>
  {{end}}
</div>
</body>
</html>`))

func (s *Server) renderHTML(w http.ResponseWriter, code int, ok bool, msg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_ = page.Execute(w, struct {
		OK          bool
		Msg         string
		BotUsername string
	}{OK: ok, Msg: msg, BotUsername: s.botUsername})
}

// ===== Admin API =====

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.adminUser)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.adminPass)) == 1
	if s.adminUser == "" || !userOK || !passOK {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	token, err := s.auth.Mint(w)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

type promocodeCreateRequest struct {
	Code            string   `json:"code"`
	Type            string   `json:"type"`
	Value           string   `json:"value"`
	ServiceCode     string   `json:"service_code"`
	MaxUses         int      `json:"max_uses"`
	MaxUsesPerUser  int      `json:"max_uses_per_user"`
	MinAmount       *string  `json:"min_amount"`
	AllowedServices []string `json:"allowed_services"`
	ValidFrom       *string  `json:"valid_from"`
	ValidUntil      *string  `json:"valid_until"`
	CreatedBy       int64    `json:"created_by"`
}

func (s *Server) handlePromocodeCreate(w http.ResponseWriter, r *http.Request) {
	var req promocodeCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	value := decimal.Zero
	if req.Value != "" {
		v, err := decimal.NewFromString(req.Value)
		if err != nil {
			http.Error(w, "Invalid value", http.StatusBadRequest)
			return
		}
		value = v
	}
	promo := &model.Promocode{
		Code:            req.Code,
		Type:            model.PromocodeType(req.Type),
		Value:           value,
		ServiceCode:     req.ServiceCode,
		MaxUses:         req.MaxUses,
		MaxUsesPerUser:  req.MaxUsesPerUser,
		AllowedServices: req.AllowedServices,
		IsActive:        true,
		CreatedBy:       req.CreatedBy,
	}
	if req.MinAmount != nil {
		m, err := decimal.NewFromString(*req.MinAmount)
		if err != nil {
			http.Error(w, "Invalid min_amount", http.StatusBadRequest)
			return
		}
		promo.MinAmount = &m
	}
	for _, pair := range []struct {
		raw string
		dst **time.Time
	}{
		{strVal(req.ValidFrom), &promo.ValidFrom},
		{strVal(req.ValidUntil), &promo.ValidUntil},
	} {
		if pair.raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, pair.raw)
		if err != nil {
			http.Error(w, "Invalid date, want RFC3339", http.StatusBadRequest)
			return
		}
		*pair.dst = &t
	}

	if err := s.promos.Create(r.Context(), promo); err != nil {
		switch {
		case errors.Is(err, domain.ErrAlreadyExists):
			http.Error(w, "Promocode already exists", http.StatusConflict)
		case errors.Is(err, domain.ErrInvalidArgument):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			http.Error(w, "Failed to create promocode", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"code": model.NormalizeCode(promo.Code)})
}

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (s *Server) handlePromocodeList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	promos, err := s.promos.ListActive(r.Context(), limit)
	if err != nil {
		http.Error(w, "Failed to list promocodes", http.StatusInternalServerError)
		return
	}
	type item struct {
		Code      string `json:"code"`
		Type      string `json:"type"`
		Value     string `json:"value"`
		UsesCount int    `json:"uses_count"`
		MaxUses   int    `json:"max_uses"`
	}
	out := make([]item, 0, len(promos))
	for _, p := range promos {
		out = append(out, item{
			Code:      p.Code,
			Type:      string(p.Type),
			Value:     p.Value.String(),
			UsesCount: p.UsesCount,
			MaxUses:   p.MaxUses,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePromocodeStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.promos.GetStats(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Promocode not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to get stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"code":           stats.Code,
		"type":           string(stats.Type),
		"uses_count":     stats.UsesCount,
		"max_uses":       stats.MaxUses,
		"total_discount": stats.TotalDiscount.String(),
		"is_active":      stats.IsActive,
	})
}

func (s *Server) handlePromocodeDeactivate(w http.ResponseWriter, r *http.Request) {
	if err := s.promos.Deactivate(r.Context(), chi.URLParam(r, "code")); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Promocode not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to deactivate promocode", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePaymentCreate opens a pending invoice and returns the checkout URL.
func (s *Server) handlePaymentCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		UserID int64  `json:"user_id"`
		Amount string `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.Sign() <= 0 || req.UserID == 0 {
		http.Error(w, "Invalid amount or user_id", http.StatusBadRequest)
		return
	}
	// A double-submitted form opens one invoice, not two.
	if !s.guard.Allow(ctx, req.UserID, "payment:create") {
		http.Error(w, "Duplicate request", http.StatusTooManyRequests)
		return
	}

	invID, err := s.payments.NextInvID(ctx, nil)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	inv := &model.Payment{
		ID:        uuid.New(),
		InvID:     invID,
		UserID:    req.UserID,
		Amount:    amount,
		Currency:  model.CurrencyRub,
		Status:    model.PaymentStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.payments.Save(ctx, nil, inv); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	metrics.IncPayment("initiated")
	url := s.gateway.PaymentURL(amount, invID, fmt.Sprintf("Пополнение баланса на %s ₽", amount.StringFixed(2)), req.UserID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"inv_id": invID,
		"url":    url,
	})
}

func (s *Server) handleAccountInfo(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid user id", http.StatusBadRequest)
		return
	}
	info, err := s.limits.GetAccountInfo(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "User not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to get account info", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tier":               string(info.Tier),
		"tier_name":          info.TierName,
		"account_until":      info.AccountUntil,
		"active_ads":         info.ActiveAds,
		"max_active_ads":     info.MaxActiveAds,
		"published_last_30d": info.PublishedLast30d,
		"max_publications":   info.MaxPublications,
		"extra_ads_limit":    info.ExtraAdsLimit,
		"ad_duration_days":   info.AdDurationDays,
		"video_allowed":      info.VideoAllowed,
	})
}

func (s *Server) handleCurrentRate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	starRub, err := s.rates.GetCurrentRate(ctx)
	if err != nil {
		http.Error(w, "Failed to get rate", http.StatusInternalServerError)
		return
	}
	usdRub, err := s.rates.GetUsdRubRate(ctx)
	if err != nil {
		http.Error(w, "Failed to get rate", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"star_rub": starRub.StringFixed(4),
		"usd_rub":  usdRub.StringFixed(4),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
