/*
handlers.go - HTTP API handlers for the compensation engine

PURPOSE:
  Exposes the compensation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Members:
    GET    /api/members                 List active members (paged)
    POST   /api/members                 Register a member under a sponsor
    GET    /api/members/{id}            Get member profile
    GET    /api/members/{id}/entries    Day's ledger entries for a member
    GET    /api/members/{id}/bonuses    Member's bonus history
    GET    /api/members/{id}/wallet     Balance plus transaction log

  Ledger:
    POST   /api/ledger/credits          Post pairing points to a leg

  Runs:
    POST   /api/runs/daily              Trigger (or retry) daily settlement
    POST   /api/runs/monthly            Trigger a monthly settlement
    GET    /api/runs/daily              Daily run history
    GET    /api/runs/monthly            Monthly run history

  Settlement:
    GET    /api/bonuses                 List bonuses by status
    POST   /api/bonuses/{id}/approve    Approve and credit e-wallet
    POST   /api/bonuses/{id}/reject     Reject without crediting
    POST   /api/bonuses/{id}/paid       Mark an approved bonus paid out

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Member or bonus not found
  - 409: Conflict (run already settled, bonus already processed)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/vertex/comp-engine/bonus"
	"github.com/vertex/comp-engine/engine"
	"github.com/vertex/comp-engine/ledger"
	"github.com/vertex/comp-engine/network"
	"github.com/vertex/comp-engine/wallet"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger     *ledger.Ledger
	Directory  *network.Directory
	Bonuses    bonus.Store
	Wallets    wallet.Store
	Settlement *wallet.SettlementService
	Daily      *engine.DailyRunner
	Monthly    *engine.MonthlyRunner
	Calc       *bonus.Calculator
	Notifier   engine.Notifier

	Log *zap.Logger
}

// =============================================================================
// MEMBER HANDLERS
// =============================================================================

// ListMembers returns a page of active members.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 100)

	members, err := h.Directory.Members().ListActive(r.Context(), offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list members", err)
		return
	}

	dtos := make([]MemberDTO, len(members))
	for i := range members {
		dtos[i] = toMemberDTO(&members[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetMember returns a single member profile.
func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	id := ledger.MemberID(chi.URLParam(r, "id"))

	m, err := h.Directory.Members().Member(r.Context(), id)
	if errors.Is(err, network.ErrMemberNotFound) {
		writeError(w, http.StatusNotFound, "Member not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get member", err)
		return
	}
	writeJSON(w, http.StatusOK, toMemberDTO(m))
}

// RegisterMember enrolls a member under a sponsor. When a sponsor is named
// a sponsor bonus is awarded immediately, pending approval like any
// run-produced bonus. An already-registered ID is refused with 409.
func (h *Handler) RegisterMember(w http.ResponseWriter, r *http.Request) {
	var req RegisterMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}
	tier := network.Tier(req.Tier)
	if !tier.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown package tier", nil)
		return
	}
	position := ledger.Leg(req.Position)
	if req.SponsorID != "" && !position.Valid() {
		writeError(w, http.StatusBadRequest, "Position must be left or right", nil)
		return
	}

	ctx := r.Context()
	if _, err := h.Directory.Members().Member(ctx, ledger.MemberID(req.ID)); err == nil {
		writeError(w, http.StatusConflict, "Member already registered", nil)
		return
	} else if !errors.Is(err, network.ErrMemberNotFound) {
		writeError(w, http.StatusInternalServerError, "Failed to check member", err)
		return
	}

	m := network.MemberProfile{
		ID:            ledger.MemberID(req.ID),
		UserID:        req.UserID,
		Name:          req.Name,
		Tier:          tier,
		PackageStatus: network.PackageActive,
		SponsorID:     ledger.MemberID(req.SponsorID),
		Position:      position,
		CareerLevel:   h.Directory.Ladder().Base().Name,
		CreatedAt:     time.Now().UTC(),
	}
	if err := h.Directory.Members().Save(ctx, m); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save member", err)
		return
	}

	if req.SponsorID != "" {
		h.awardSponsorBonus(ctx, &m)
	}

	writeJSON(w, http.StatusCreated, toMemberDTO(&m))
}

// awardSponsorBonus creates the pending sponsor bonus for a registration.
// A missing or inactive sponsor is logged, never fatal to the enrollment.
func (h *Handler) awardSponsorBonus(ctx context.Context, joiner *network.MemberProfile) {
	sponsor, err := h.Directory.Members().Member(ctx, joiner.SponsorID)
	if err != nil {
		h.Log.Warn("sponsor bonus skipped",
			zap.String("joiner", string(joiner.ID)),
			zap.String("sponsor", string(joiner.SponsorID)),
			zap.Error(err))
		return
	}
	if !sponsor.Active() {
		h.Log.Info("sponsor bonus skipped, sponsor package inactive",
			zap.String("sponsor", string(sponsor.ID)))
		return
	}

	b, err := h.Calc.Sponsor(ctx, sponsor, joiner)
	if err != nil || b == nil {
		return
	}
	if err := h.Bonuses.Insert(ctx, b); err != nil {
		h.Log.Error("sponsor bonus not recorded",
			zap.String("sponsor", string(sponsor.ID)), zap.Error(err))
		return
	}
	h.Notifier.Notify(engine.Notification{
		Kind:     engine.NotifyBonusPending,
		MemberID: sponsor.ID,
		Payload:  map[string]any{"bonus_id": string(b.ID), "kind": string(b.Kind)},
	})
}

// MemberBonuses returns the member's bonus history.
func (h *Handler) MemberBonuses(w http.ResponseWriter, r *http.Request) {
	id := ledger.MemberID(chi.URLParam(r, "id"))
	limit := queryInt(r, "limit", 100)

	records, err := h.Bonuses.ListByMember(r.Context(), id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list bonuses", err)
		return
	}
	writeJSON(w, http.StatusOK, toBonusDTOs(records))
}

// MemberWallet returns the member's balance and recent transactions.
func (h *Handler) MemberWallet(w http.ResponseWriter, r *http.Request) {
	id := ledger.MemberID(chi.URLParam(r, "id"))
	limit := queryInt(r, "limit", 50)

	wal, err := h.Wallets.Wallet(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load wallet", err)
		return
	}
	txs, err := h.Wallets.Transactions(r.Context(), id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load transactions", err)
		return
	}

	dto := WalletDTO{
		MemberID:     string(wal.MemberID),
		Balance:      int64(wal.Balance),
		Transactions: make([]TransactionDTO, len(txs)),
	}
	for i, tx := range txs {
		dto.Transactions[i] = TransactionDTO{
			ID:        string(tx.ID),
			Kind:      string(tx.Kind),
			Amount:    int64(tx.Amount),
			BonusID:   string(tx.BonusID),
			Note:      tx.Note,
			CreatedAt: tx.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dto)
}

// MemberEntries returns the member's ledger entries for one date.
func (h *Handler) MemberEntries(w http.ResponseWriter, r *http.Request) {
	id := ledger.MemberID(chi.URLParam(r, "id"))

	date, err := ledger.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}
	entries, err := h.Ledger.EntriesOn(r.Context(), id, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list entries", err)
		return
	}

	dtos := make([]EntryDTO, len(entries))
	for i := range entries {
		dtos[i] = toEntryDTO(entries[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

// PostCredit appends a pairing-point entry and mirrors it into the
// member's cumulative leg totals. Reposting the same reference is a 409.
func (h *Handler) PostCredit(w http.ResponseWriter, r *http.Request) {
	var req CreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	leg := ledger.Leg(req.Leg)
	if !leg.Valid() {
		writeError(w, http.StatusBadRequest, "Leg must be left or right", nil)
		return
	}
	if req.Points <= 0 {
		writeError(w, http.StatusBadRequest, "Points must be positive", nil)
		return
	}
	date, err := ledger.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	ctx := r.Context()
	member := ledger.MemberID(req.MemberID)
	entry, err := h.Ledger.Credit(ctx, member, leg, ledger.Points(req.Points),
		date, ledger.Source(req.Source), req.ReferenceID)
	if errors.Is(err, ledger.ErrDuplicateEntry) {
		writeError(w, http.StatusConflict, "Entry already posted", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to post entry", err)
		return
	}

	if err := h.Directory.Members().AddPairingPoints(ctx, member, leg, entry.Points); err != nil {
		h.Log.Warn("leg totals not mirrored",
			zap.String("member", string(member)), zap.Error(err))
	}

	writeJSON(w, http.StatusCreated, toEntryDTO(entry))
}

// =============================================================================
// RUN HANDLERS
// =============================================================================

// TriggerDaily starts the daily settlement for a date, or retries a
// non-completed run when retry is set.
func (h *Handler) TriggerDaily(w http.ResponseWriter, r *http.Request) {
	var req TriggerDailyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := ledger.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	var run *engine.DailyRun
	if req.Retry {
		run, err = h.Daily.Retry(r.Context(), date)
	} else {
		run, err = h.Daily.Run(r.Context(), date)
	}
	h.writeRunResult(w, toDailyRunDTO(run), err)
}

// TriggerMonthly starts a monthly settlement for a closed period.
func (h *Handler) TriggerMonthly(w http.ResponseWriter, r *http.Request) {
	var req TriggerMonthlyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	period, err := ledger.NewPeriod(req.Month, req.Year)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	var run *engine.MonthlyRun
	switch engine.MonthlyKind(req.Kind) {
	case engine.MonthlyRepeatOrder:
		run, err = h.Monthly.RunRepeatOrder(r.Context(), period)
	case engine.MonthlyGlobalSharing:
		run, err = h.Monthly.RunGlobalSharing(r.Context(), period)
	default:
		writeError(w, http.StatusBadRequest, "Unknown monthly run kind", nil)
		return
	}
	h.writeRunResult(w, toMonthlyRunDTO(run), err)
}

func (h *Handler) writeRunResult(w http.ResponseWriter, dto *RunDTO, err error) {
	switch {
	case errors.Is(err, bonus.ErrAlreadyRun):
		writeError(w, http.StatusConflict, "Run already settled", err)
	case errors.Is(err, ledger.ErrInvalidPeriod):
		writeError(w, http.StatusBadRequest, "Period not closed yet", err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Run failed", err)
	default:
		writeJSON(w, http.StatusOK, dto)
	}
}

// ListDailyRuns returns recent daily runs, newest first.
func (h *Handler) ListDailyRuns(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 30)

	runs, err := h.Daily.Runs.ListDaily(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}
	dtos := make([]RunDTO, len(runs))
	for i := range runs {
		dtos[i] = *toDailyRunDTO(&runs[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListMonthlyRuns returns recent monthly runs, newest first.
func (h *Handler) ListMonthlyRuns(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 24)

	runs, err := h.Monthly.Runs.ListMonthly(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}
	dtos := make([]RunDTO, len(runs))
	for i := range runs {
		dtos[i] = *toMonthlyRunDTO(&runs[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// SETTLEMENT HANDLERS
// =============================================================================

// ListBonuses returns bonuses filtered by status (default pending).
func (h *Handler) ListBonuses(w http.ResponseWriter, r *http.Request) {
	status := bonus.Status(r.URL.Query().Get("status"))
	if status == "" {
		status = bonus.StatusPending
	}
	limit := queryInt(r, "limit", 100)

	records, err := h.Bonuses.ListByStatus(r.Context(), status, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list bonuses", err)
		return
	}
	writeJSON(w, http.StatusOK, toBonusDTOs(records))
}

// ApproveBonus approves a pending bonus and credits the e-wallet portion.
func (h *Handler) ApproveBonus(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, func(ctx context.Context, id bonus.BonusID, req DecideBonusRequest) (*bonus.Bonus, error) {
		return h.Settlement.Approve(ctx, id, req.AdminID)
	})
}

// RejectBonus rejects a pending bonus. No wallet mutation.
func (h *Handler) RejectBonus(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, func(ctx context.Context, id bonus.BonusID, req DecideBonusRequest) (*bonus.Bonus, error) {
		return h.Settlement.Reject(ctx, id, req.AdminID, req.Reason)
	})
}

// MarkBonusPaid marks an approved bonus as paid out.
func (h *Handler) MarkBonusPaid(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, func(ctx context.Context, id bonus.BonusID, req DecideBonusRequest) (*bonus.Bonus, error) {
		return h.Settlement.MarkPaid(ctx, id, req.AdminID)
	})
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request,
	fn func(context.Context, bonus.BonusID, DecideBonusRequest) (*bonus.Bonus, error)) {

	id := bonus.BonusID(chi.URLParam(r, "id"))
	var req DecideBonusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.AdminID == "" {
		writeError(w, http.StatusBadRequest, "admin_id is required", nil)
		return
	}

	b, err := fn(r.Context(), id, req)
	switch {
	case errors.Is(err, bonus.ErrBonusNotFound):
		writeError(w, http.StatusNotFound, "Bonus not found", nil)
	case errors.Is(err, bonus.ErrAlreadyProcessed):
		writeError(w, http.StatusConflict, "Bonus already processed", err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Settlement failed", err)
	default:
		writeJSON(w, http.StatusOK, toBonusDTO(b))
	}
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func toMemberDTO(m *network.MemberProfile) MemberDTO {
	return MemberDTO{
		ID:            string(m.ID),
		UserID:        m.UserID,
		Name:          m.Name,
		Tier:          string(m.Tier),
		PackageStatus: string(m.PackageStatus),
		SponsorID:     string(m.SponsorID),
		Position:      string(m.Position),
		PairingLeft:   int64(m.PairingTotals.Left),
		PairingRight:  int64(m.PairingTotals.Right),
		CareerLevel:   m.CareerLevel,
		CreatedAt:     m.CreatedAt.Format(time.RFC3339),
	}
}

func toEntryDTO(e ledger.Entry) EntryDTO {
	return EntryDTO{
		ID:            string(e.ID),
		MemberID:      string(e.MemberID),
		Leg:           string(e.Leg),
		Points:        int64(e.Points),
		BalanceBefore: int64(e.BalanceBefore),
		BalanceAfter:  int64(e.BalanceAfter),
		Date:          e.Date.String(),
		Source:        string(e.Source),
		ReferenceID:   e.ReferenceID,
	}
}

func toBonusDTO(b *bonus.Bonus) BonusDTO {
	dto := BonusDTO{
		ID:            string(b.ID),
		MemberID:      string(b.MemberID),
		Kind:          string(b.Kind),
		Amount:        int64(b.Amount),
		EWalletAmount: int64(b.EWalletAmount),
		CashAmount:    int64(b.CashAmount),
		Status:        string(b.Status),
		BonusDate:     b.BonusDate.String(),
		Period:        b.Period.String(),
		RunID:         b.RunID,
		DecidedBy:     b.DecidedBy,
		RejectReason:  b.RejectReason,
	}
	if !b.CreatedAt.IsZero() {
		dto.CreatedAt = b.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toBonusDTOs(records []bonus.Bonus) []BonusDTO {
	dtos := make([]BonusDTO, len(records))
	for i := range records {
		dtos[i] = toBonusDTO(&records[i])
	}
	return dtos
}

func toDailyRunDTO(run *engine.DailyRun) *RunDTO {
	if run == nil {
		return nil
	}
	dto := &RunDTO{
		ID:               run.ID,
		Key:              run.Date.String(),
		Status:           string(run.Status),
		Totals:           totalsMap(run.Totals),
		BonusCount:       run.Totals.BonusCount,
		MembersProcessed: run.Totals.MembersProcessed,
		MembersSkipped:   run.Totals.MembersSkipped,
		StartedAt:        run.StartedAt.Format(time.RFC3339),
		Error:            run.Error,
	}
	if run.CompletedAt != nil {
		dto.CompletedAt = run.CompletedAt.Format(time.RFC3339)
	}
	return dto
}

func toMonthlyRunDTO(run *engine.MonthlyRun) *RunDTO {
	if run == nil {
		return nil
	}
	dto := &RunDTO{
		ID:               run.ID,
		Key:              run.Period.String(),
		Kind:             string(run.Kind),
		Status:           string(run.Status),
		Totals:           totalsMap(run.Totals),
		BonusCount:       run.Totals.BonusCount,
		MembersProcessed: run.Totals.MembersProcessed,
		MembersSkipped:   run.Totals.MembersSkipped,
		StartedAt:        run.StartedAt.Format(time.RFC3339),
		Error:            run.Error,
	}
	if run.CompletedAt != nil {
		dto.CompletedAt = run.CompletedAt.Format(time.RFC3339)
	}
	return dto
}

func totalsMap(t engine.RunTotals) map[string]int64 {
	out := make(map[string]int64, len(t.ByKind))
	for k, v := range t.ByKind {
		out[string(k)] = int64(v)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
