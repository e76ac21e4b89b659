package sync

import (
	"database/sql"
	"fmt"

	"netbill.id/panel/internal/models"
	"netbill.id/panel/pkg/logger"
)

// Settings keys the secret service reads.
const (
	SettingSuspensionProfile = "suspension_profile"
	SettingDefaultProfile    = "default_profile"
)

var validServices = map[string]bool{
	"pppoe": true,
	"pptp":  true,
	"l2tp":  true,
	"sstp":  true,
}

// SecretSyncService reconciles subscriber accounts (PPP secrets) in both
// directions, including suspension handling and guarded deletes.
type SecretSyncService struct {
	fetcher   *Fetcher
	accounts  AccountStore
	profiles  ProfileStore
	customers CustomerStore
	settings  SettingsReader
	monitor   *SessionMonitor
	logger    *logger.Logger
}

func NewSecretSyncService(f *Fetcher, accounts AccountStore, profiles ProfileStore,
	customers CustomerStore, settings SettingsReader, monitor *SessionMonitor,
	log *logger.Logger) *SecretSyncService {
	return &SecretSyncService{
		fetcher:   f,
		accounts:  accounts,
		profiles:  profiles,
		customers: customers,
		settings:  settings,
		monitor:   monitor,
		logger:    log,
	}
}

// Import pulls the remote secret list. A record whose profile cannot be
// resolved locally is skipped, never silently reassigned. Accounts with
// no local match are created under a placeholder customer: the billing
// model does not allow ownerless accounts.
func (s *SecretSyncService) Import(r Runner, batchSize int) (*Result, error) {
	fetched, err := s.fetcher.FetchAll(r, "/ppp/secret/print", "name", batchSize)
	if err != nil {
		return nil, err
	}

	res := &Result{Source: fetched.Source}
	res.Skipped = len(fetched.Skipped)
	res.Errors = append(res.Errors, fetched.Skipped...)

	fallbackProfile := s.settings.Get(SettingDefaultProfile, "default")

	for _, rec := range fetched.Records {
		name := rec["name"]

		profileName := rec["profile"]
		if profileName == "" {
			profileName = fallbackProfile
		}
		prof, err := s.profiles.GetByName(profileName)
		if err != nil {
			res.Fail(name, err)
			continue
		}
		if prof == nil {
			res.Skip("%s: profile %q not found", name, profileName)
			continue
		}

		disabled := rec["disabled"] == "true" || rec["disabled"] == "yes"

		acc, err := s.accounts.GetByUsername(name)
		if err != nil {
			res.Fail(name, err)
			continue
		}

		if acc != nil {
			acc.ProfileID = prof.ID
			acc.IsActive = !disabled
			if rec["password"] != "" {
				acc.Password = rec["password"]
			}
			if rec["comment"] != "" {
				acc.Comment = nullString(rec["comment"])
			}
			acc.RouterID = nullString(rec[".id"])
			acc.LastSyncedName = nullString(name)
			acc.LastSyncedProfile = nullString(prof.Name)
			if err := s.accounts.Update(acc); err != nil {
				res.Fail(name, err)
				continue
			}
			res.Updated++
			continue
		}

		customerID, err := s.customers.EnsurePlaceholder(name)
		if err != nil {
			res.Fail(name, err)
			continue
		}

		service := rec["service"]
		if !validServices[service] {
			service = "pppoe"
		}

		created := &models.SubscriberAccount{
			CustomerID:        customerID,
			Username:          name,
			Password:          rec["password"],
			Service:           service,
			ProfileID:         prof.ID,
			IsActive:          !disabled,
			Comment:           nullString(rec["comment"]),
			RouterID:          nullString(rec[".id"]),
			LastSyncedName:    nullString(name),
			LastSyncedProfile: nullString(prof.Name),
			AutoSync:          true,
		}
		if err := s.accounts.Create(created); err != nil {
			res.Fail(name, err)
			continue
		}
		res.Created++
	}
	return res, nil
}

// Push exports one account: update the remote secret if the username
// exists, create it otherwise. A changed username or profile since the
// last successful push invalidates the remote identity, so the old
// object is removed first and the secret recreated.
func (s *SecretSyncService) Push(r Runner, acc *models.SubscriberAccount) error {
	_, err := s.push(r, acc)
	return err
}

func (s *SecretSyncService) push(r Runner, acc *models.SubscriberAccount) (bool, error) {
	prof, err := s.profiles.GetByID(acc.ProfileID)
	if err != nil {
		return false, err
	}
	if prof == nil {
		return false, newError(KindValidation, "push "+acc.Username, "assigned profile missing locally", nil)
	}

	renamed := acc.LastSyncedName.Valid && acc.LastSyncedName.String != acc.Username
	reprofiled := acc.LastSyncedProfile.Valid && acc.LastSyncedProfile.String != prof.Name
	if renamed || reprofiled {
		oldName := acc.LastSyncedName.String
		if err := s.removeRemote(r, oldName); err != nil {
			// Already-absent or failed removes are tolerated; the
			// recreate below is what restores correctness.
			s.logger.Warn("Failed to remove secret under old identity, continuing",
				"username", oldName, "error", err.Error())
		}
	}

	remoteID, err := s.findRemote(r, acc.Username)
	if err != nil {
		return false, err
	}

	words := []string{
		"=password=" + acc.Password,
		"=service=" + acc.Service,
		"=profile=" + prof.Name,
		"=comment=" + acc.Comment.String,
		"=disabled=" + yesNo(!acc.IsActive),
	}

	created := false
	if remoteID != "" {
		// Also covers a recreate target that already exists remotely,
		// e.g. from a concurrent run; converge by updating in place.
		if _, err := r.Run(append([]string{"/ppp/secret/set", "=.id=" + remoteID}, words...)...); err != nil {
			return false, Classify("secret set "+acc.Username, err)
		}
	} else {
		reply, err := r.Run(append([]string{"/ppp/secret/add", "=name=" + acc.Username}, words...)...)
		if err != nil {
			return false, Classify("secret add "+acc.Username, err)
		}
		created = true
		if reply.Done != nil {
			remoteID = reply.Done.Map["ret"]
		}
	}

	acc.RouterID = nullString(remoteID)
	acc.LastSyncedName = nullString(acc.Username)
	acc.LastSyncedProfile = nullString(prof.Name)
	if err := s.accounts.Update(acc); err != nil {
		return created, err
	}
	return created, nil
}

// PushAll exports every auto-sync account; failures accumulate without
// stopping the loop.
func (s *SecretSyncService) PushAll(r Runner) (*Result, error) {
	accounts, err := s.accounts.ListAutoSync()
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for i := range accounts {
		created, err := s.push(r, &accounts[i])
		if err != nil {
			res.Fail(accounts[i].Username, err)
			continue
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
	}
	return res, nil
}

// Disable suspends an account: swap to the suspension profile while
// remembering the profile held right before, push, then kick any live
// session so the cut takes effect immediately.
func (s *SecretSyncService) Disable(r Runner, acc *models.SubscriberAccount) error {
	suspName := s.settings.Get(SettingSuspensionProfile, "Blokir")
	susp, err := s.profiles.GetByName(suspName)
	if err != nil {
		return err
	}
	if susp == nil {
		return newError(KindValidation, "disable "+acc.Username,
			fmt.Sprintf("suspension profile %q not found locally", suspName), nil)
	}

	// Never overwrite the memory with the suspension profile itself; a
	// second disable without an enable in between must stay restorable.
	if acc.ProfileID != susp.ID {
		acc.SavedProfileID = sql.NullInt64{Int64: int64(acc.ProfileID), Valid: true}
	}
	acc.ProfileID = susp.ID
	acc.IsActive = false

	if err := s.Push(r, acc); err != nil {
		return err
	}

	kick := s.monitor.Disconnect(r, acc.Username)
	if kick.Outcome != OutcomeConfirmed {
		s.logger.Warn("Session kick after disable not confirmed",
			"username", acc.Username, "outcome", string(kick.Outcome), "reason", kick.Reason)
	}
	return nil
}

// Enable restores the exact profile held before suspension and clears
// the memory field.
func (s *SecretSyncService) Enable(r Runner, acc *models.SubscriberAccount) error {
	if acc.SavedProfileID.Valid {
		acc.ProfileID = int(acc.SavedProfileID.Int64)
		acc.SavedProfileID = sql.NullInt64{}
	}
	acc.IsActive = true
	return s.Push(r, acc)
}

// Delete removes the secret remotely, then locally. A remote "not found"
// is safe to proceed past; a timeout is ambiguous and, without force,
// blocks the local delete so the operator can retry or investigate.
func (s *SecretSyncService) Delete(r Runner, acc *models.SubscriberAccount, force bool) error {
	err := s.removeRemote(r, acc.Username)
	if err != nil && !IsNotFound(err) {
		if !force {
			return err
		}
		s.logger.Warn("Forcing local delete despite remote failure",
			"username", acc.Username, "error", err.Error())
	}
	return s.accounts.Delete(acc.ID)
}

// Stats summarizes accounts by sync state for the dashboard.
type Stats struct {
	Total     int `json:"total"`
	Synced    int `json:"synced"`
	Pending   int `json:"pending"`
	LocalOnly int `json:"local_only"`
	Drifted   int `json:"drifted"`
	Suspended int `json:"suspended"`
}

func (s *SecretSyncService) Stats() (*Stats, error) {
	profiles, err := s.profiles.List()
	if err != nil {
		return nil, err
	}
	names := make(map[int]string, len(profiles))
	for _, p := range profiles {
		names[p.ID] = p.Name
	}

	accounts, err := s.accounts.List()
	if err != nil {
		return nil, err
	}

	stats := &Stats{Total: len(accounts)}
	for i := range accounts {
		switch accounts[i].SyncState(names[accounts[i].ProfileID]) {
		case models.StateSynced:
			stats.Synced++
		case models.StatePending:
			stats.Pending++
		case models.StateLocalOnly:
			stats.LocalOnly++
		case models.StateDrifted:
			stats.Drifted++
		case models.StateSuspended:
			stats.Suspended++
		}
	}
	return stats, nil
}

func (s *SecretSyncService) findRemote(r Runner, username string) (string, error) {
	reply, err := r.Run("/ppp/secret/print", "?name="+username)
	if err != nil {
		return "", Classify("secret lookup "+username, err)
	}
	if len(reply.Re) == 0 {
		return "", nil
	}
	return reply.Re[0].Map[".id"], nil
}

func (s *SecretSyncService) removeRemote(r Runner, username string) error {
	id, err := s.findRemote(r, username)
	if err != nil {
		return err
	}
	if id == "" {
		return newError(KindNotFound, "secret remove "+username, "no such item", nil)
	}
	if _, err := r.Run("/ppp/secret/remove", "=.id="+id); err != nil {
		return Classify("secret remove "+username, err)
	}
	return nil
}
