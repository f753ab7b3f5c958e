package httpapi

import (
	"net/http"

	"github.com/flowplane/flowplane/pkg/apierr"
	"github.com/flowplane/flowplane/pkg/authz"
	"github.com/flowplane/flowplane/pkg/storage"
	"github.com/flowplane/flowplane/pkg/types"
)

// secretTeam resolves the {team} path segment and checks access for
// action, returning the team row so handlers can scope repository calls
// to its id. Read access follows the same resource-kind check as write
// (team-scoped auth, no carve-out for listing).
func (s *Server) secretTeam(authCtx types.AuthContext, r *http.Request, action authz.Action) (*types.Team, error) {
	teamName := r.PathValue("team")
	var team *types.Team
	err := s.store.View(r.Context(), func(tx storage.Tx) error {
		t, err := resolveTeam(tx, authCtx, teamName)
		if err != nil {
			return err
		}
		team = t
		org, err := tx.Orgs().GetByID(t.OrgID)
		if err != nil {
			return err
		}
		teamName := t.Name
		isBootstrap := authCtx.TokenID == "bootstrap"
		if !s.kernel.CheckResourceAccess(authCtx, "secrets", action, &teamName, org.Name, isBootstrap) {
			return apierr.Forbiddenf("secrets", teamName, string(action))
		}
		return nil
	})
	return team, err
}

// secretView is the redacted wire shape of a Secret — Configuration and
// BackendReference are never serialized, so response bodies never
// include secret material.
type secretView struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	SecretType types.SecretType `json:"secretType"`
	Version    uint64          `json:"version"`
}

func toSecretView(s *types.Secret) secretView {
	return secretView{ID: s.ID, Name: s.Name, SecretType: s.SecretType, Version: s.Version}
}

func (s *Server) handleListSecrets(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := s.authContext(w, r)
	if !ok {
		return
	}
	team, err := s.secretTeam(authCtx, r, authz.Read)
	if err != nil {
		writeError(w, err)
		return
	}

	var out []secretView
	err = s.store.View(r.Context(), func(tx storage.Tx) error {
		list, err := tx.Secrets().ListByTeam(team.ID, 0, 0)
		if err != nil {
			return err
		}
		for _, sec := range list {
			out = append(out, toSecretView(sec))
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateSecretBody is the decoded body of POST .../secrets.
type CreateSecretBody struct {
	Name             string              `json:"name"`
	SecretType       types.SecretType    `json:"secretType"`
	Configuration    map[string]any      `json:"configuration,omitempty"`
	BackendReference string              `json:"backendReference,omitempty"`
}

func (s *Server) handleCreateSecret(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := s.authContext(w, r)
	if !ok {
		return
	}
	team, err := s.secretTeam(authCtx, r, authz.Write)
	if err != nil {
		writeError(w, err)
		return
	}
	var body CreateSecretBody
	if !decodeJSON(w, r, &body) {
		return
	}

	secret := &types.Secret{
		TeamID:           team.ID,
		Name:             body.Name,
		SecretType:       body.SecretType,
		Configuration:    body.Configuration,
		BackendReference: body.BackendReference,
	}
	if err := secret.Validate(); err != nil {
		writeError(w, err)
		return
	}

	err = s.store.WithinTx(r.Context(), func(tx storage.Tx) error {
		if err := tx.Secrets().Create(secret); err != nil {
			return err
		}
		return tx.Audit().Record(storage.AuditEntry{
			ResourceType: "secret",
			ResourceID:   secret.ID,
			Action:       storage.AuditCreate,
			NewConfig:    map[string]any{"name": secret.Name, "secretType": secret.SecretType},
			ActorID:      authCtx.TokenID,
		})
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSecretView(secret))
}

func (s *Server) handleGetSecret(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := s.authContext(w, r)
	if !ok {
		return
	}
	team, err := s.secretTeam(authCtx, r, authz.Read)
	if err != nil {
		writeError(w, err)
		return
	}
	name := r.PathValue("name")

	var found *types.Secret
	err = s.store.View(r.Context(), func(tx storage.Tx) error {
		sec, err := tx.Secrets().GetByName(team.ID, name)
		if err != nil {
			return err
		}
		found = sec
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSecretView(found))
}

func (s *Server) handleUpdateSecret(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := s.authContext(w, r)
	if !ok {
		return
	}
	team, err := s.secretTeam(authCtx, r, authz.Write)
	if err != nil {
		writeError(w, err)
		return
	}
	name := r.PathValue("name")

	var body CreateSecretBody
	if !decodeJSON(w, r, &body) {
		return
	}

	var updated *types.Secret
	err = s.store.WithinTx(r.Context(), func(tx storage.Tx) error {
		existing, err := tx.Secrets().GetByName(team.ID, name)
		if err != nil {
			return err
		}
		existing.SecretType = body.SecretType
		existing.Configuration = body.Configuration
		existing.BackendReference = body.BackendReference
		if err := existing.Validate(); err != nil {
			return err
		}
		if err := tx.Secrets().Update(existing); err != nil {
			return err
		}
		updated = existing
		return tx.Audit().Record(storage.AuditEntry{
			ResourceType: "secret",
			ResourceID:   existing.ID,
			Action:       storage.AuditUpdate,
			NewConfig:    map[string]any{"name": existing.Name, "secretType": existing.SecretType},
			ActorID:      authCtx.TokenID,
		})
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSecretView(updated))
}

func (s *Server) handleDeleteSecret(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := s.authContext(w, r)
	if !ok {
		return
	}
	team, err := s.secretTeam(authCtx, r, authz.Write)
	if err != nil {
		writeError(w, err)
		return
	}
	name := r.PathValue("name")

	err = s.store.WithinTx(r.Context(), func(tx storage.Tx) error {
		existing, err := tx.Secrets().GetByName(team.ID, name)
		if err != nil {
			return err
		}
		if err := tx.Secrets().Delete(existing.ID); err != nil {
			return err
		}
		return tx.Audit().Record(storage.AuditEntry{
			ResourceType: "secret",
			ResourceID:   existing.ID,
			Action:       storage.AuditDelete,
			ActorID:      authCtx.TokenID,
		})
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
