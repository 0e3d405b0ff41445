package groups

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/koinonia-app/koinonia/internal/authz"
	"github.com/koinonia-app/koinonia/internal/identity"
	"github.com/koinonia-app/koinonia/internal/platform/httpx"
)

// Handler manages group endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     *identity.Guard
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard *identity.Guard) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, validator: validator.New()}
}

// MountRoutes registers group routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/with-members", h.listWithMembers)
	r.Get("/mine", h.listMine)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.remove)

	r.Get("/{id}/members", h.listMembers)
	r.Post("/{id}/members", h.addMember)
	r.Patch("/{id}/members/{userID}", h.setMemberRole)
	r.Delete("/{id}/members/{userID}", h.removeMember)

	r.Post("/applications", h.apply)
	r.Get("/applications/mine", h.myApplications)
	r.Get("/{id}/applications", h.listApplications)
	r.Post("/applications/{id}/review", h.reviewApplication)

	r.Post("/{id}/invitations", h.invite)
	r.Get("/invitations", h.myInvitations)
	r.Post("/invitations/{id}/respond", h.respondToInvitation)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

type groupView struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toGroupView(g *Group) groupView {
	return groupView{ID: g.ID, Name: g.Name, Description: g.Description, CreatedAt: g.CreatedAt}
}

type membershipView struct {
	GroupID  int64     `json:"groupId"`
	UserID   string    `json:"userId"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

func toMembershipView(m *Membership) membershipView {
	return membershipView{GroupID: m.GroupID, UserID: m.UserID, Role: string(m.Role), JoinedAt: m.CreatedAt}
}

type applicationView struct {
	ID         int64      `json:"id"`
	GroupID    int64      `json:"groupId"`
	UserID     string     `json:"userId"`
	Status     string     `json:"status"`
	ReviewedBy string     `json:"reviewedBy,omitempty"`
	ReviewedAt *time.Time `json:"reviewedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func toApplicationView(app *Application) applicationView {
	return applicationView{
		ID:         app.ID,
		GroupID:    app.GroupID,
		UserID:     app.UserID,
		Status:     app.Status,
		ReviewedBy: app.ReviewedBy,
		ReviewedAt: app.ReviewedAt,
		CreatedAt:  app.CreatedAt,
	}
}

type invitationView struct {
	ID            int64     `json:"id"`
	GroupID       int64     `json:"groupId"`
	InvitedUserID string    `json:"invitedUserId"`
	InviterUserID string    `json:"inviterUserId"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
}

func toInvitationView(inv *Invitation) invitationView {
	return invitationView{
		ID:            inv.ID,
		GroupID:       inv.GroupID,
		InvitedUserID: inv.InvitedUserID,
		InviterUserID: inv.InviterUserID,
		Status:        inv.Status,
		CreatedAt:     inv.CreatedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	if _, err := h.guard.RequireUser(r.Context()); err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list groups", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]groupView, 0, len(list))
	for i := range list {
		views = append(views, toGroupView(&list[i]))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"groups": views})
}

type createGroupRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"omitempty,max=5000"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	principal, err := h.guard.RequireFellowshipPermission(r.Context(), authz.PermCreateGroups)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createGroupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}

	group, err := h.service.Create(r.Context(), req.Name, req.Description, principal.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"group": toGroupView(group)})
}

func (h *Handler) listWithMembers(w http.ResponseWriter, r *http.Request) {
	principal, err := h.guard.RequireUser(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	canViewAll := authz.IsAdmin(principal) || authz.IsPastor(principal) ||
		authz.HasFellowshipPermission(principal, authz.PermManageAllGroups)

	list, err := h.service.ListWithMembers(r.Context(), principal.ID, canViewAll)
	if err != nil {
		h.logger.Error("list groups with members", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"groups": list})
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	principal, err := h.guard.RequireUser(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, err := h.service.ListForUser(r.Context(), principal.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	views := make([]groupView, 0, len(list))
	for i := range list {
		views = append(views, toGroupView(&list[i]))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"groups": views})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	if _, err := h.guard.RequireUser(r.Context()); err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	group, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"group": toGroupView(group)})
}

type updateGroupRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=255"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if _, _, err := h.guard.RequireGroupPermission(r.Context(), id, authz.GroupPermEditGroup); err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateGroupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}

	group, err := h.service.Update(r.Context(), id, UpdateInput{Name: req.Name, Description: req.Description})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"group": toGroupView(group)})
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	principal, err := h.guard.RequireUser(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if !authz.HasFellowshipPermission(principal, authz.PermDeleteGroups) {
		if _, _, err := h.guard.RequireGroupPermission(r.Context(), id, authz.GroupPermDeleteGroup); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if _, _, err := h.guard.RequireGroupPermission(r.Context(), id, authz.GroupPermViewAttendance); err != nil {
		httpx.RespondError(w, err)
		return
	}
	members, err := h.service.ListMembers(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	views := make([]membershipView, 0, len(members))
	for i := range members {
		views = append(views, toMembershipView(&members[i]))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"members": views})
}

type addMemberRequest struct {
	UserID string `json:"userId" validate:"required"`
	Role   string `json:"role" validate:"omitempty,oneof=leader member"`
}

func (h *Handler) addMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if _, _, err := h.guard.RequireGroupPermission(r.Context(), id, authz.GroupPermManageMembers); err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req addMemberRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	role := authz.GroupRole(req.Role)
	if role == "" {
		role = authz.GroupRoleMember
	}
	if err := h.service.AddMember(r.Context(), id, req.UserID, role); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"success": true})
}

type setMemberRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=leader member"`
}

func (h *Handler) setMemberRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if _, _, err := h.guard.RequireGroupPermission(r.Context(), id, authz.GroupPermManageMembers); err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req setMemberRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	userID := chi.URLParam(r, "userID")
	if err := h.service.SetMemberRole(r.Context(), id, userID, authz.GroupRole(req.Role)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	principal, err := h.guard.RequireUser(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	userID := chi.URLParam(r, "userID")
	// Members may leave on their own; removing someone else needs the
	// group permission.
	if principal.ID != userID {
		if _, _, err := h.guard.RequireGroupPermission(r.Context(), id, authz.GroupPermRemoveMembers); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	if err := h.service.RemoveMember(r.Context(), id, userID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}

type applyRequest struct {
	GroupIDs []int64 `json:"groupIds" validate:"required,min=1,dive,gt=0"`
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request) {
	principal, err := h.guard.RequireUser(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req applyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}

	result, err := h.service.Apply(r.Context(), principal.ID, req.GroupIDs)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) myApplications(w http.ResponseWriter, r *http.Request) {
	principal, err := h.guard.RequireUser(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	apps, err := h.service.ListApplicationsForUser(r.Context(), principal.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	views := make([]applicationView, 0, len(apps))
	for i := range apps {
		views = append(views, toApplicationView(&apps[i]))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"applications": views})
}

func (h *Handler) listApplications(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.requireReviewer(r, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	apps, err := h.service.ListApplications(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	views := make([]applicationView, 0, len(apps))
	for i := range apps {
		views = append(views, toApplicationView(&apps[i]))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"applications": views})
}

type reviewRequest struct {
	Approve bool `json:"approve"`
}

func (h *Handler) reviewApplication(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	app, err := h.service.GetApplication(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.requireReviewer(r, app.GroupID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	principal, err := h.guard.RequireUser(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req reviewRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}

	reviewed, err := h.service.Review(r.Context(), id, principal.ID, req.Approve)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"application": toApplicationView(reviewed)})
}

// requireReviewer accepts the fellowship-wide review permission or the
// group-scoped one.
func (h *Handler) requireReviewer(r *http.Request, groupID int64) error {
	principal, err := h.guard.RequireUser(r.Context())
	if err != nil {
		return err
	}
	if authz.HasFellowshipPermission(principal, authz.PermReviewGroupApplications) {
		return nil
	}
	_, _, err = h.guard.RequireGroupPermission(r.Context(), groupID, authz.GroupPermReviewApplications)
	return err
}

type inviteRequest struct {
	UserID string `json:"userId" validate:"required"`
}

func (h *Handler) invite(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	principal, _, err := h.guard.RequireGroupPermission(r.Context(), id, authz.GroupPermInviteMembers)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req inviteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}

	inv, err := h.service.Invite(r.Context(), id, req.UserID, principal.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"invitation": toInvitationView(inv)})
}

func (h *Handler) myInvitations(w http.ResponseWriter, r *http.Request) {
	principal, err := h.guard.RequireUser(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, err := h.service.ListInvitationsForUser(r.Context(), principal.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	views := make([]invitationView, 0, len(list))
	for i := range list {
		views = append(views, toInvitationView(&list[i]))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invitations": views})
}

type respondRequest struct {
	Accept bool `json:"accept"`
}

func (h *Handler) respondToInvitation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	principal, err := h.guard.RequireUser(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req respondRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}

	inv, err := h.service.Respond(r.Context(), id, principal.ID, req.Accept)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invitation": toInvitationView(inv)})
}
