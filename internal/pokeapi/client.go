package pokeapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/cenkalti/backoff/v5"
	"github.com/tidwall/gjson"

	"github.com/Monroeshindelar/lw-game-service/internal/platform/timeouts"
)

var (
	// ErrNotFound indicates the catalog has no entry for the identifier.
	ErrNotFound = errors.New("catalog entry not found")
	// ErrUnavailable indicates the catalog could not be reached or kept
	// failing after retries.
	ErrUnavailable = errors.New("catalog unavailable")
)

const defaultMaxTries = 3

// Client is a read-only client for the species catalog. The catalog is an
// external dependency; transient failures are retried with exponential
// backoff before surfacing as ErrUnavailable.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxTries   uint
}

// NewClient creates a catalog client rooted at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeouts.CatalogRequest},
		maxTries:   defaultMaxTries,
	}
}

// GetSpecies fetches the full descriptor for a species by numeric id or
// name. It combines the creature record with its species record to resolve
// the evolution chain id.
func (c *Client) GetSpecies(ctx context.Context, idOrName string) (Species, error) {
	idOrName = strings.TrimSpace(strings.ToLower(idOrName))
	if idOrName == "" {
		return Species{}, fmt.Errorf("%w: empty species identifier", ErrNotFound)
	}

	body, err := c.fetch(ctx, "/pokemon/"+idOrName)
	if err != nil {
		return Species{}, fmt.Errorf("get species %q: %w", idOrName, err)
	}
	species := parseSpecies(body)

	speciesBody, err := c.fetch(ctx, "/pokemon-species/"+strconv.Itoa(species.ID))
	if err != nil {
		return Species{}, fmt.Errorf("get species record %d: %w", species.ID, err)
	}
	species.EvolutionChainID = trailingID(gjson.GetBytes(speciesBody, "evolution_chain.url").String())

	return species, nil
}

// GetEvolutionChain fetches the evolution graph by chain id.
func (c *Client) GetEvolutionChain(ctx context.Context, id int) (EvolutionChain, error) {
	body, err := c.fetch(ctx, "/evolution-chain/"+strconv.Itoa(id))
	if err != nil {
		return EvolutionChain{}, fmt.Errorf("get evolution chain %d: %w", id, err)
	}
	return EvolutionChain{
		ID:   id,
		Root: parseChainLink(gjson.GetBytes(body, "chain")),
	}, nil
}

// fetch issues a GET against the catalog with retries. 4xx responses are
// terminal; 5xx and transport errors retry up to maxTries.
func (c *Client) fetch(ctx context.Context, path string) ([]byte, error) {
	operation := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, backoff.Permanent(ErrNotFound)
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("%w: catalog returned %d", ErrUnavailable, resp.StatusCode)
		case resp.StatusCode >= 400:
			return nil, backoff.Permanent(fmt.Errorf("%w: catalog returned %d", ErrUnavailable, resp.StatusCode))
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
		}
		return body, nil
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(c.maxTries))
}

func parseSpecies(body []byte) Species {
	record := gjson.ParseBytes(body)

	species := Species{
		ID:   int(record.Get("id").Int()),
		Name: record.Get("name").String(),
	}

	record.Get("abilities").ForEach(func(_, value gjson.Result) bool {
		species.Abilities = append(species.Abilities, Ability{
			Name:   value.Get("ability.name").String(),
			Slot:   int(value.Get("slot").Int()),
			Hidden: value.Get("is_hidden").Bool(),
		})
		return true
	})

	record.Get("types").ForEach(func(_, value gjson.Result) bool {
		species.Types = append(species.Types, value.Get("type.name").String())
		return true
	})

	record.Get("stats").ForEach(func(_, value gjson.Result) bool {
		base := int(value.Get("base_stat").Int())
		switch value.Get("stat.name").String() {
		case "hp":
			species.BaseStats.HP = base
		case "attack":
			species.BaseStats.Attack = base
		case "defense":
			species.BaseStats.Defense = base
		case "special-attack":
			species.BaseStats.SpecialAttack = base
		case "special-defense":
			species.BaseStats.SpecialDefense = base
		case "speed":
			species.BaseStats.Speed = base
		}
		return true
	})

	return species
}

func parseChainLink(node gjson.Result) ChainLink {
	link := ChainLink{Name: node.Get("species.name").String()}
	node.Get("evolves_to").ForEach(func(_, value gjson.Result) bool {
		link.EvolvesTo = append(link.EvolvesTo, parseChainLink(value))
		return true
	})
	return link
}

// trailingID extracts the numeric id from a catalog resource URL such as
// "https://catalog/api/v2/evolution-chain/67/".
func trailingID(url string) int {
	parts := strings.Split(strings.TrimRight(url, "/"), "/")
	if len(parts) == 0 {
		return 0
	}
	id, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return 0
	}
	return id
}
