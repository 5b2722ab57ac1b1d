package services

import (
	"context"
	"fmt"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"gorm.io/gorm"

	"journal-workflow-api/config"
	"journal-workflow-api/models"
)

// Capability is a privileged action checked by the Guard.
type Capability string

const (
	CapManageJournal         Capability = "manage-journal"
	CapMakeEditorialDecision Capability = "make-editorial-decision"
	CapAssignReviewer        Capability = "assign-reviewer"
	CapSubmitReview          Capability = "submit-review"
	CapAssignCopyeditor      Capability = "assign-copyeditor"
	CapApproveCopyedit       Capability = "approve-copyedit"
	CapUploadFile            Capability = "upload-file"
	CapSchedulePublication   Capability = "schedule-publication"
	CapParticipateDiscussion Capability = "participate-discussion"
)

// Role names, as stored in journal_roles.role and carried in tokens.
const (
	RoleAdmin         = "admin"
	RoleManager       = "manager"
	RoleEditor        = "editor"
	RoleSectionEditor = "section_editor"
	RoleReviewer      = "reviewer"
	RoleCopyeditor    = "copyeditor"
	RoleAuthor        = "author"
)

var allCapabilities = mapset.NewSet(
	CapManageJournal,
	CapMakeEditorialDecision,
	CapAssignReviewer,
	CapSubmitReview,
	CapAssignCopyeditor,
	CapApproveCopyedit,
	CapUploadFile,
	CapSchedulePublication,
	CapParticipateDiscussion,
)

var roleCapabilities = map[string]mapset.Set[Capability]{
	RoleManager: allCapabilities,
	RoleEditor: mapset.NewSet(
		CapMakeEditorialDecision,
		CapAssignReviewer,
		CapAssignCopyeditor,
		CapApproveCopyedit,
		CapUploadFile,
		CapSchedulePublication,
		CapParticipateDiscussion,
	),
	RoleSectionEditor: mapset.NewSet(
		CapMakeEditorialDecision,
		CapAssignReviewer,
		CapUploadFile,
		CapParticipateDiscussion,
	),
	RoleReviewer:   mapset.NewSet(CapSubmitReview, CapParticipateDiscussion),
	RoleCopyeditor: mapset.NewSet(CapUploadFile, CapParticipateDiscussion),
	RoleAuthor:     mapset.NewSet(CapApproveCopyedit, CapUploadFile, CapParticipateDiscussion),
}

// submitterOnlyRoles grant their capabilities on the holder's own submissions only.
var submitterOnlyRoles = mapset.NewSet(RoleAuthor)

// selfExcludedCapabilities are refused to the submitter whatever roles they hold.
var selfExcludedCapabilities = mapset.NewSet(CapMakeEditorialDecision, CapAssignReviewer)

// Valid reports whether c belongs to the closed capability set.
func (c Capability) Valid() bool {
	return allCapabilities.Contains(c)
}

// Actor is the identity supplied by the authentication collaborator for one request.
type Actor struct {
	UserID      int
	GlobalRoles mapset.Set[string]
}

// NewActor builds an Actor from a user id and its global roles.
func NewActor(userID int, globalRoles ...string) Actor {
	return Actor{UserID: userID, GlobalRoles: mapset.NewSet(globalRoles...)}
}

// SystemActor is used by scheduled jobs such as issue release.
func SystemActor() Actor {
	return NewActor(-1, RoleAdmin)
}

func (a Actor) authenticated() bool {
	return a.UserID != 0
}

func (a Actor) isAdmin() bool {
	return a.GlobalRoles != nil && a.GlobalRoles.Contains(RoleAdmin)
}

// RoleSource resolves a user's role memberships in one journal.
type RoleSource interface {
	JournalRoles(ctx context.Context, userID, journalID int) (mapset.Set[string], error)
}

// GormRoleSource reads memberships from journal_roles.
type GormRoleSource struct {
	db *gorm.DB
}

func NewGormRoleSource(db *gorm.DB) *GormRoleSource {
	if db == nil {
		db = config.DB
	}
	return &GormRoleSource{db: db}
}

func (s *GormRoleSource) JournalRoles(ctx context.Context, userID, journalID int) (mapset.Set[string], error) {
	var roles []string
	if err := s.db.WithContext(ctx).
		Model(&models.JournalRole{}).
		Where("user_id = ? AND journal_id = ?", userID, journalID).
		Pluck("role", &roles).Error; err != nil {
		return nil, fmt.Errorf("load journal roles: %w", err)
	}
	return mapset.NewSet(roles...), nil
}

// Guard decides whether an actor may exercise a capability within a journal.
// It holds no cache; every privileged operation calls it again.
type Guard struct {
	roles RoleSource
}

func NewGuard(roles RoleSource) *Guard {
	return &Guard{roles: roles}
}

// Authorize returns nil when the actor holds capability in journalID.
func (g *Guard) Authorize(ctx context.Context, actor Actor, journalID int, capability Capability) error {
	_, err := g.grantingRoles(ctx, actor, journalID, capability)
	return err
}

// grantingRoles returns the actor's journal roles that carry capability. Admins get an
// empty set and a nil error.
func (g *Guard) grantingRoles(ctx context.Context, actor Actor, journalID int, capability Capability) (mapset.Set[string], error) {
	if !actor.authenticated() {
		return nil, ErrUnauthorized
	}
	if !capability.Valid() {
		return nil, validation("unknown capability %q", capability)
	}
	granting := mapset.NewSet[string]()
	if actor.isAdmin() {
		return granting, nil
	}

	roles, err := g.roles.JournalRoles(ctx, actor.UserID, journalID)
	if err != nil {
		return nil, err
	}
	for _, role := range roles.ToSlice() {
		if caps, ok := roleCapabilities[role]; ok && caps.Contains(capability) {
			granting.Add(role)
		}
	}
	if granting.Cardinality() == 0 {
		return nil, ErrCapabilityDenied
	}
	return granting, nil
}

// AuthorizeSubmission applies Authorize in the submission's journal and then ties the
// grant to the manuscript: the author role acts only on the holder's own submissions,
// and a submitter never decides on or staffs the review of their own manuscript.
func (g *Guard) AuthorizeSubmission(ctx context.Context, actor Actor, submission *models.Submission, capability Capability) error {
	granting, err := g.grantingRoles(ctx, actor, submission.JournalID, capability)
	if err != nil {
		return err
	}
	own := actor.UserID == submission.SubmitterID
	if granting.Cardinality() > 0 && granting.IsSubset(submitterOnlyRoles) && !own {
		return ErrCapabilityDenied
	}
	if own && selfExcludedCapabilities.Contains(capability) {
		return ErrConflictOfInterest
	}
	return nil
}

// Capabilities lists what the actor may do in journalID.
func (g *Guard) Capabilities(ctx context.Context, actor Actor, journalID int) ([]Capability, error) {
	if !actor.authenticated() {
		return nil, ErrUnauthorized
	}
	if actor.isAdmin() {
		result := allCapabilities.ToSlice()
		slices.Sort(result)
		return result, nil
	}
	roles, err := g.roles.JournalRoles(ctx, actor.UserID, journalID)
	if err != nil {
		return nil, err
	}
	granted := mapset.NewSet[Capability]()
	for _, role := range roles.ToSlice() {
		if caps, ok := roleCapabilities[role]; ok {
			granted = granted.Union(caps)
		}
	}
	result := granted.ToSlice()
	slices.Sort(result)
	return result, nil
}
