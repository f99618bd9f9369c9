package identity

import (
	"context"

	apperr "github.com/jrsteele09/go-token-trust/internal/errors"
	"github.com/jrsteele09/go-token-trust/internal/metrics"
	"github.com/jrsteele09/go-token-trust/internal/utils"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Outcome records how Reconcile resolved the local record.
type Outcome string

const (
	OutcomeFound            Outcome = "found"
	OutcomeCreated          Outcome = "created"
	OutcomeConflictResolved Outcome = "conflict_resolved"
)

// Result is the resolved local identity plus how it was obtained.
type Result struct {
	Identity *Identity
	Outcome  Outcome
	Updated  bool // claims differed and the record was rewritten
}

// Reconciler finds or creates the local identity for a remote one. It holds
// no lock: concurrent creators are arbitrated by the store's unique email.
type Reconciler struct {
	repo Repo
}

func NewReconciler(repo Repo) *Reconciler {
	return &Reconciler{repo: repo}
}

// Reconcile resolves remote to a local record, creating it on first contact
// and syncing subject id, name and admin flag afterwards.
func (r *Reconciler) Reconcile(ctx context.Context, remote RemoteIdentity) (Result, error) {
	existing, err := r.repo.FindByEmail(ctx, remote.Email)
	switch {
	case err == nil:
		return r.sync(ctx, existing, remote, OutcomeFound)
	case !apperr.Is(err, apperr.ErrNotFound):
		return Result{}, errors.Wrap(err, "[Reconciler.Reconcile] find identity")
	}

	created := &Identity{
		AuthSubjectID: remote.SubjectID,
		Email:         remote.Email,
		FullName:      remote.FullName,
		Admin:         remote.Admin,
		Active:        true,
	}
	err = r.repo.Insert(ctx, created)
	if err == nil {
		r.record(OutcomeCreated)
		log.Info().Str("email", remote.Email).Int64("auth_subject_id", remote.SubjectID).Msg("created local identity")
		return Result{Identity: created, Outcome: OutcomeCreated}, nil
	}
	if !apperr.Is(err, apperr.ErrConflict) {
		return Result{}, errors.Wrap(err, "[Reconciler.Reconcile] insert identity")
	}

	// Another request created the same email first.
	existing, err = r.repo.FindByEmail(ctx, remote.Email)
	if apperr.Is(err, apperr.ErrNotFound) {
		log.Error().Str("email", remote.Email).Msg("identity missing after unique conflict")
		return Result{}, apperr.ErrInternalInconsistency
	}
	if err != nil {
		return Result{}, errors.Wrap(err, "[Reconciler.Reconcile] re-read identity")
	}
	return r.sync(ctx, existing, remote, OutcomeConflictResolved)
}

func (r *Reconciler) sync(ctx context.Context, local *Identity, remote RemoteIdentity, outcome Outcome) (Result, error) {
	result := Result{Identity: local, Outcome: outcome}
	if local.AuthSubjectID == remote.SubjectID &&
		local.Admin == remote.Admin &&
		utils.Equal(local.FullName, remote.FullName) {
		r.record(outcome)
		return result, nil
	}

	local.AuthSubjectID = remote.SubjectID
	local.FullName = remote.FullName
	local.Admin = remote.Admin
	if err := r.repo.Update(ctx, local); err != nil {
		return Result{}, errors.Wrap(err, "[Reconciler.sync] update identity")
	}
	result.Updated = true
	r.record(outcome)
	log.Debug().Str("email", local.Email).Msg("synced local identity with token claims")
	return result, nil
}

func (r *Reconciler) record(outcome Outcome) {
	metrics.Reconciliations.WithLabelValues(string(outcome)).Inc()
}
