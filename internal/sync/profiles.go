package sync

import (
	"database/sql"

	"netbill.id/panel/internal/models"
	"netbill.id/panel/pkg/logger"
)

// Platform default profiles are never imported or overwritten.
var defaultProfileNames = map[string]bool{
	"default":            true,
	"default-encryption": true,
}

// ProfileSyncService reconciles PPP profile definitions in both
// directions between the billing store and the router.
type ProfileSyncService struct {
	fetcher  *Fetcher
	profiles ProfileStore
	logger   *logger.Logger
}

func NewProfileSyncService(f *Fetcher, profiles ProfileStore, log *logger.Logger) *ProfileSyncService {
	return &ProfileSyncService{fetcher: f, profiles: profiles, logger: log}
}

// Import pulls the remote profile list. Known locals are updated by
// name; new ones are created with price zero, pending manual entry.
func (s *ProfileSyncService) Import(r Runner, batchSize int) (*Result, error) {
	fetched, err := s.fetcher.FetchAll(r, "/ppp/profile/print", "name", batchSize)
	if err != nil {
		return nil, err
	}

	res := &Result{Source: fetched.Source}
	res.Skipped = len(fetched.Skipped)
	res.Errors = append(res.Errors, fetched.Skipped...)

	for _, rec := range fetched.Records {
		name := rec["name"]
		if defaultProfileNames[name] {
			res.Skip("%s: platform default profile", name)
			continue
		}

		existing, err := s.profiles.GetByName(name)
		if err != nil {
			res.Fail(name, err)
			continue
		}

		if existing != nil {
			applyRemoteProfile(existing, rec)
			if err := s.profiles.Update(existing); err != nil {
				res.Fail(name, err)
				continue
			}
			res.Updated++
		} else {
			p := &models.ServiceProfile{Name: name, SyncEnabled: true}
			applyRemoteProfile(p, rec)
			if err := s.profiles.Create(p); err != nil {
				res.Fail(name, err)
				continue
			}
			res.Created++
		}
	}
	return res, nil
}

// PushAll exports every sync-enabled local profile against one
// prefetched remote listing.
func (s *ProfileSyncService) PushAll(r Runner) (*Result, error) {
	remote, err := s.remoteIndex(r)
	if err != nil {
		return nil, err
	}

	locals, err := s.profiles.ListSyncEnabled()
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for i := range locals {
		created, err := s.push(r, &locals[i], remote)
		if err != nil {
			res.Fail(locals[i].Name, err)
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

// Push exports a single profile.
func (s *ProfileSyncService) Push(r Runner, p *models.ServiceProfile) error {
	remote, err := s.remoteIndex(r)
	if err != nil {
		return err
	}
	_, err = s.push(r, p, remote)
	return err
}

func (s *ProfileSyncService) remoteIndex(r Runner) (map[string]string, error) {
	reply, err := r.Run("/ppp/profile/print")
	if err != nil {
		return nil, Classify("/ppp/profile/print", err)
	}
	idx := make(map[string]string)
	for _, sen := range reply.Re {
		if name := sen.Map["name"]; name != "" {
			idx[name] = sen.Map[".id"]
		}
	}
	return idx, nil
}

// push updates the remote profile if its name exists, else creates it.
// A renamed profile is removed under its old name first; the router
// knows profiles by name only. Returns whether a create happened.
func (s *ProfileSyncService) push(r Runner, p *models.ServiceProfile, remote map[string]string) (bool, error) {
	if old := p.LastSyncedName.String; p.LastSyncedName.Valid && old != p.Name {
		if id, ok := remote[old]; ok {
			if _, err := r.Run("/ppp/profile/remove", "=.id="+id); err != nil {
				s.logger.Warn("Failed to remove renamed profile, continuing",
					"profile", old, "error", err.Error())
			}
			delete(remote, old)
		}
	}

	words := []string{
		"=local-address=" + p.LocalAddress.String,
		"=remote-address=" + p.RemoteAddress.String,
		"=rate-limit=" + p.RateLimit.String,
		"=only-one=" + yesNo(p.OnlyOne),
		"=comment=" + p.Description.String,
	}

	created := false
	if id, ok := remote[p.Name]; ok {
		if _, err := r.Run(append([]string{"/ppp/profile/set", "=.id=" + id}, words...)...); err != nil {
			return false, Classify("profile set "+p.Name, err)
		}
		p.RouterID = nullString(id)
	} else {
		reply, err := r.Run(append([]string{"/ppp/profile/add", "=name=" + p.Name}, words...)...)
		if err != nil {
			return false, Classify("profile add "+p.Name, err)
		}
		created = true
		if reply.Done != nil {
			p.RouterID = nullString(reply.Done.Map["ret"])
		}
		remote[p.Name] = p.RouterID.String
	}

	p.LastSyncedName = nullString(p.Name)
	if err := s.profiles.Update(p); err != nil {
		return created, err
	}
	return created, nil
}

func applyRemoteProfile(p *models.ServiceProfile, rec map[string]string) {
	p.LocalAddress = nullString(rec["local-address"])
	p.RemoteAddress = nullString(rec["remote-address"])
	p.RateLimit = nullString(rec["rate-limit"])
	p.OnlyOne = rec["only-one"] == "yes"
	p.Description = nullString(rec["comment"])
	p.RouterID = nullString(rec[".id"])
	p.LastSyncedName = nullString(p.Name)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
