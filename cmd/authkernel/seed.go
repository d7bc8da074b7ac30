package main

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/authkernel/internal/domain/repository"
	"github.com/dropDatabas3/authkernel/internal/domain/types"
	"github.com/dropDatabas3/authkernel/internal/oauth2/client"
	"github.com/dropDatabas3/authkernel/internal/oauth2/databag"
	"github.com/dropDatabas3/authkernel/internal/store/memory"
)

// seedFile es el formato del archivo de seed para desarrollo: clients van al
// repositorio activo (memoria o Postgres); el resto puebla el store en memoria.
type seedFile struct {
	Clients []struct {
		ID       string         `yaml:"id"`
		Metadata map[string]any `yaml:"metadata"`
		OwnerID  string         `yaml:"owner_id"`
	} `yaml:"clients"`

	Users []struct {
		ID       string         `yaml:"id"`
		Username string         `yaml:"username"`
		Password string         `yaml:"password"`
		Claims   map[string]any `yaml:"claims"`
	} `yaml:"users"`

	Scopes []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		DisplayName string `yaml:"display_name"`
	} `yaml:"scopes"`

	ResourceServers []struct {
		ID     string `yaml:"id"`
		Name   string `yaml:"name"`
		Secret string `yaml:"secret"`
	} `yaml:"resource_servers"`

	TrustedIssuers []struct {
		Name                  string            `yaml:"name"`
		AllowedAssertionTypes []string          `yaml:"allowed_assertion_types"`
		AllowedSignatureAlgs  []string          `yaml:"allowed_signature_algs"`
		JWKS                  map[string]string `yaml:"jwks"`
	} `yaml:"trusted_issuers"`
}

func applySeed(ctx context.Context, path string, mem *memory.Store, clients repository.ClientRepository) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var f seedFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	for _, c := range f.Clients {
		err := clients.Create(ctx, &client.Client{
			ID:       types.ClientID(c.ID),
			Metadata: databag.New(c.Metadata),
			OwnerID:  types.UserAccountID(c.OwnerID),
		})
		if err != nil && !repository.IsConflict(err) {
			return fmt.Errorf("seed client %q: %w", c.ID, err)
		}
	}

	for _, u := range f.Users {
		err := mem.AddUser(&repository.UserAccount{
			ID:       types.UserAccountID(u.ID),
			Username: u.Username,
			Claims:   databag.New(u.Claims),
		}, u.Password)
		if err != nil {
			return fmt.Errorf("seed user %q: %w", u.Username, err)
		}
	}

	for _, s := range f.Scopes {
		mem.AddScope(repository.Scope{
			Name:        s.Name,
			Description: s.Description,
			DisplayName: s.DisplayName,
		})
	}

	for _, rs := range f.ResourceServers {
		hash, err := bcrypt.GenerateFromPassword([]byte(rs.Secret), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		mem.AddResourceServer(&repository.ResourceServer{
			ID:         types.ResourceServerID(rs.ID),
			Name:       rs.Name,
			SecretHash: string(hash),
		})
	}

	for _, ti := range f.TrustedIssuers {
		mem.AddTrustedIssuer(&repository.TrustedIssuer{
			Name:                  ti.Name,
			AllowedAssertionTypes: ti.AllowedAssertionTypes,
			AllowedSignatureAlgs:  ti.AllowedSignatureAlgs,
			JWKS:                  ti.JWKS,
		})
	}
	return nil
}
