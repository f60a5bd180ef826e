package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/NikPlatonov/bank-account-api/pkg/bank"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type httpHandler struct {
	logger  *zap.Logger
	manager *bank.Manager
}

type accountPayload struct {
	ID        int64     `json:"id"`
	Amount    string    `json:"amount"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type reservePayload struct {
	ID        string    `json:"id"`
	AccountID int64     `json:"account_id"`
	Amount    string    `json:"amount"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

type createReserveRequest struct {
	ID        string `json:"id"`
	AccountID int64  `json:"account_id"`
	Amount    string `json:"amount"`
	Type      string `json:"type"`
}

type amountRequest struct {
	Amount string `json:"amount"`
}

func accountResponse(account bank.Account) accountPayload {
	return accountPayload{
		ID:        account.ID,
		Amount:    account.Amount.String(),
		Active:    account.Active,
		CreatedAt: account.CreatedAt,
		UpdatedAt: account.UpdatedAt,
	}
}

func reserveResponse(reserve bank.Reserve) reservePayload {
	return reservePayload{
		ID:        reserve.ID,
		AccountID: reserve.AccountID,
		Amount:    reserve.Amount.String(),
		Type:      reserve.Type.String(),
		CreatedAt: reserve.CreatedAt,
	}
}

func (handler *httpHandler) handleCreateAccount(ctx *gin.Context) {
	account, err := handler.manager.Accounts().Create(ctx.Request.Context())
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"account": accountResponse(account)})
}

func (handler *httpHandler) handleGetAccount(ctx *gin.Context) {
	accountID, ok := parseAccountID(ctx)
	if !ok {
		return
	}
	account, err := handler.manager.GetActiveAccount(ctx.Request.Context(), accountID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"account": accountResponse(account)})
}

func (handler *httpHandler) handleCloseAccount(ctx *gin.Context) {
	accountID, ok := parseAccountID(ctx)
	if !ok {
		return
	}
	if err := handler.manager.Accounts().Close(ctx.Request.Context(), accountID); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// handleDeposit and handleWithdraw run the whole reserve -> commit cycle in
// one request. The reservation id is generated server-side, so these calls
// are not retry-safe; callers that need idempotency use the two-phase API.
func (handler *httpHandler) handleDeposit(ctx *gin.Context) {
	handler.oneShot(ctx, bank.ReserveDeposit)
}

func (handler *httpHandler) handleWithdraw(ctx *gin.Context) {
	handler.oneShot(ctx, bank.ReserveWithdraw)
}

func (handler *httpHandler) oneShot(ctx *gin.Context, reserveType bank.ReserveType) {
	accountID, ok := parseAccountID(ctx)
	if !ok {
		return
	}
	var request amountRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	amount, ok := parseAmount(ctx, request.Amount)
	if !ok {
		return
	}

	requestCtx := ctx.Request.Context()
	reserveID := uuid.NewString()
	var (
		reserve bank.Reserve
		err     error
	)
	switch reserveType {
	case bank.ReserveDeposit:
		reserve, err = handler.manager.ReserveDeposit(requestCtx, reserveID, accountID, amount)
	default:
		reserve, err = handler.manager.ReserveWithdraw(requestCtx, reserveID, accountID, amount)
	}
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	account, err := handler.manager.Commit(requestCtx, reserve)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"account":    accountResponse(account),
		"reserve_id": reserveID,
	})
}

func (handler *httpHandler) handleCreateReserve(ctx *gin.Context) {
	var request createReserveRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	reserveType, err := bank.ParseReserveType(request.Type)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_type", fmt.Sprintf("unknown reserve type %q", request.Type)))
		return
	}
	amount, ok := parseAmount(ctx, request.Amount)
	if !ok {
		return
	}
	option, err := bank.NewReserveOption(request.ID, request.AccountID, reserveType, amount)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	reserve, err := handler.manager.Reserve(ctx.Request.Context(), option)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"reserve": reserveResponse(reserve)})
}

func (handler *httpHandler) handleGetReserve(ctx *gin.Context) {
	reserve, err := handler.manager.GetReserve(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"reserve": reserveResponse(reserve)})
}

// Commit and rollback resolve the id via lookup first: an id with no row
// answers "reserve not found". "Already handled" covers only the race where
// the row vanishes between the lookup and the resolution.
func (handler *httpHandler) handleCommitReserve(ctx *gin.Context) {
	requestCtx := ctx.Request.Context()
	reserve, err := handler.manager.GetReserve(requestCtx, ctx.Param("id"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	account, err := handler.manager.Commit(requestCtx, reserve)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"account": accountResponse(account)})
}

func (handler *httpHandler) handleRollbackReserve(ctx *gin.Context) {
	requestCtx := ctx.Request.Context()
	reserve, err := handler.manager.GetReserve(requestCtx, ctx.Param("id"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	if err := handler.manager.Rollback(requestCtx, reserve); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (handler *httpHandler) respondError(ctx *gin.Context, err error) {
	var deniedError *bank.DeniedReserveError
	switch {
	case errors.As(err, &deniedError):
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": gin.H{
				"code":    "reserve_denied",
				"reason":  deniedError.Reason.String(),
				"deny":    deniedError.Reason.Code(),
				"message": deniedError.Error(),
			},
		})
	case errors.Is(err, bank.ErrInvalidReserveID),
		errors.Is(err, bank.ErrInvalidReserveType),
		errors.Is(err, bank.ErrInvalidAmount):
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_request", err.Error()))
	case errors.Is(err, bank.ErrAccountNotFound):
		ctx.JSON(http.StatusNotFound, errorResponse("account_not_found", "account not found"))
	case errors.Is(err, bank.ErrReserveNotFound):
		ctx.JSON(http.StatusNotFound, errorResponse("reserve_not_found", "reserve not found"))
	case errors.Is(err, bank.ErrNotUniqueID):
		ctx.JSON(http.StatusConflict, errorResponse("not_unique", "reserve id already used"))
	case errors.Is(err, bank.ErrAlreadyHandled):
		ctx.JSON(http.StatusGone, errorResponse("already_handled", "reserve already handled"))
	default:
		handler.logger.Error("request failed",
			zap.String("request_id", ctx.GetString("request_id")),
			zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal", "internal error"))
	}
}

func parseAccountID(ctx *gin.Context) (int64, bool) {
	accountID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_account_id", "account id must be an integer"))
		return 0, false
	}
	return accountID, true
}

func parseAmount(ctx *gin.Context, raw string) (decimal.Decimal, bool) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_amount", fmt.Sprintf("cannot parse amount %q", raw)))
		return decimal.Zero, false
	}
	if amount.IsNegative() {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_amount", "amount must not be negative"))
		return decimal.Zero, false
	}
	return amount, true
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}
