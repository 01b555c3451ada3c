package studio

import (
	"context"
	"errors"
	"slices"
	"strings"

	"shotdeck/internal/events"
	"shotdeck/internal/store"
)

// PaneAction changes a pane's open/lock state.
type PaneAction string

const (
	PaneOpen   PaneAction = "open"
	PaneClose  PaneAction = "close"
	PaneToggle PaneAction = "toggle"
	PaneLock   PaneAction = "lock"
	PaneUnlock PaneAction = "unlock"
)

// ApplyPaneAction returns the pane state after action. Locking opens the
// pane, unlocking closes it, and a locked pane ignores close requests.
func ApplyPaneAction(state store.PaneState, action PaneAction) (store.PaneState, bool) {
	switch action {
	case PaneOpen:
		state.Open = true
	case PaneClose:
		if !state.Locked {
			state.Open = false
		}
	case PaneToggle:
		if state.Open {
			return ApplyPaneAction(state, PaneClose)
		}
		state.Open = true
	case PaneLock:
		state.Open = true
		state.Locked = true
	case PaneUnlock:
		state.Open = false
		state.Locked = false
	default:
		return state, false
	}
	return state, true
}

// GetWorkspace returns the user's workspace after reconciling it with the
// projects and shots that currently exist.
func (s *Service) GetWorkspace(ctx context.Context, userID string) (store.Workspace, error) {
	const op = "get workspace"
	if err := requireUser(op, userID); err != nil {
		return store.Workspace{}, err
	}
	ws, err := s.store.GetWorkspace(ctx, userID)
	if err != nil {
		return store.Workspace{}, translate(op, err)
	}
	reconciled, err := s.reconcile(ctx, userID, ws)
	if err != nil {
		return store.Workspace{}, err
	}
	if !workspaceEqual(ws, reconciled) {
		if err := s.saveWorkspace(ctx, userID, reconciled); err != nil {
			return store.Workspace{}, err
		}
	}
	return reconciled, nil
}

// SelectProject makes projectID the user's selected project. Shot selections
// from another project are cleared.
func (s *Service) SelectProject(ctx context.Context, userID, projectID string) (store.Workspace, error) {
	const op = "select project"
	if _, err := s.project(ctx, op, userID, projectID); err != nil {
		return store.Workspace{}, err
	}
	ws, err := s.store.GetWorkspace(ctx, userID)
	if err != nil {
		return store.Workspace{}, translate(op, err)
	}
	ws.SelectedProjectID = projectID
	return s.commitWorkspace(ctx, userID, ws)
}

// SetCurrentShot selects a shot in the selected project. An empty id clears
// the selection.
func (s *Service) SetCurrentShot(ctx context.Context, userID, shotID string) (store.Workspace, error) {
	const op = "set current shot"
	ws, err := s.GetWorkspace(ctx, userID)
	if err != nil {
		return store.Workspace{}, err
	}
	shotID = strings.TrimSpace(shotID)
	if shotID != "" {
		shot, err := s.shot(ctx, op, userID, shotID)
		if err != nil {
			return store.Workspace{}, err
		}
		if shot.ProjectID != ws.SelectedProjectID {
			return store.Workspace{}, invalid(op, "shot %s is not in the selected project", shotID)
		}
	}
	ws.CurrentShotID = shotID
	return s.commitWorkspace(ctx, userID, ws)
}

// SetPane applies a pane action.
func (s *Service) SetPane(ctx context.Context, userID, pane string, action PaneAction) (store.Workspace, error) {
	const op = "set pane"
	pane = strings.ToLower(strings.TrimSpace(pane))
	if !slices.Contains(store.PaneNames(), pane) {
		return store.Workspace{}, invalid(op, "unknown pane %q", pane)
	}
	ws, err := s.GetWorkspace(ctx, userID)
	if err != nil {
		return store.Workspace{}, err
	}
	next, ok := ApplyPaneAction(ws.Panes[pane], PaneAction(strings.ToLower(string(action))))
	if !ok {
		return store.Workspace{}, invalid(op, "unknown pane action %q", action)
	}
	ws.Panes[pane] = next
	return s.commitWorkspace(ctx, userID, ws)
}

// markAffected records shot as the user's last affected shot when it belongs
// to the selected project.
func (s *Service) markAffected(ctx context.Context, userID string, shot *store.Shot) error {
	ws, err := s.GetWorkspace(ctx, userID)
	if err != nil {
		return err
	}
	if ws.SelectedProjectID != shot.ProjectID || ws.LastAffectedShotID == shot.ID {
		return nil
	}
	ws.LastAffectedShotID = shot.ID
	_, err = s.commitWorkspace(ctx, userID, ws)
	return err
}

func (s *Service) commitWorkspace(ctx context.Context, userID string, ws store.Workspace) (store.Workspace, error) {
	reconciled, err := s.reconcile(ctx, userID, ws)
	if err != nil {
		return store.Workspace{}, err
	}
	if err := s.saveWorkspace(ctx, userID, reconciled); err != nil {
		return store.Workspace{}, err
	}
	return reconciled, nil
}

func (s *Service) saveWorkspace(ctx context.Context, userID string, ws store.Workspace) error {
	if err := s.store.SaveWorkspace(ctx, userID, ws); err != nil {
		return translate("save workspace", err)
	}
	s.emit(userID, events.TypeWorkspace, events.ActionUpdated, ws.SelectedProjectID, "")
	return nil
}

// reconcile enforces the workspace invariants: the selection names an owned
// project (falling back to the newest), and shot ids point at shots in it.
func (s *Service) reconcile(ctx context.Context, userID string, ws store.Workspace) (store.Workspace, error) {
	const op = "reconcile workspace"
	panes := make(map[string]store.PaneState, len(store.PaneNames()))
	for _, name := range store.PaneNames() {
		state := ws.Panes[name]
		if state.Locked {
			state.Open = true
		}
		panes[name] = state
	}
	ws.Panes = panes

	if ws.SelectedProjectID != "" {
		project, err := s.store.GetProject(ctx, ws.SelectedProjectID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			ws.SelectedProjectID = ""
		case err != nil:
			return ws, translate(op, err)
		case project.UserID != userID:
			ws.SelectedProjectID = ""
		}
	}
	if ws.SelectedProjectID == "" {
		recent, err := s.store.MostRecentProject(ctx, userID)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return ws, translate(op, err)
		default:
			ws.SelectedProjectID = recent.ID
		}
	}

	var err error
	if ws.CurrentShotID, err = s.shotInProject(ctx, ws.CurrentShotID, ws.SelectedProjectID); err != nil {
		return ws, translate(op, err)
	}
	if ws.LastAffectedShotID, err = s.shotInProject(ctx, ws.LastAffectedShotID, ws.SelectedProjectID); err != nil {
		return ws, translate(op, err)
	}
	return ws, nil
}

// shotInProject returns shotID when it exists in projectID, otherwise "".
func (s *Service) shotInProject(ctx context.Context, shotID, projectID string) (string, error) {
	if shotID == "" || projectID == "" {
		return "", nil
	}
	shot, err := s.store.GetShot(ctx, shotID)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if shot.ProjectID != projectID {
		return "", nil
	}
	return shotID, nil
}

func workspaceEqual(a, b store.Workspace) bool {
	if a.SelectedProjectID != b.SelectedProjectID ||
		a.CurrentShotID != b.CurrentShotID ||
		a.LastAffectedShotID != b.LastAffectedShotID ||
		len(a.Panes) != len(b.Panes) {
		return false
	}
	for name, state := range a.Panes {
		if other, ok := b.Panes[name]; !ok || other != state {
			return false
		}
	}
	return true
}
