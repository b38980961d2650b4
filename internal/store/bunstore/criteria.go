package bunstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-listings/query"
)

// likeEscaper escapes LIKE wildcards using '!' so user input such as "50%"
// matches literally on every dialect.
var likeEscaper = strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)

// Criteria translates d into go-repository-bun select criteria: one WHERE
// clause per predicate, the requested order with an id tie-breaker, and
// the skip/limit window.
func Criteria(d query.Descriptor, skip, limit int) []repository.SelectCriteria {
	var criteria []repository.SelectCriteria

	for _, m := range d.Text {
		m := m
		criteria = append(criteria, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("LOWER(?) LIKE ? ESCAPE '!'", bun.Ident(m.Column), "%"+likeEscaper.Replace(m.Value)+"%")
		})
	}

	for _, m := range d.Exact {
		m := m
		criteria = append(criteria, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("? = ?", bun.Ident(m.Column), m.Value)
		})
	}

	for _, r := range d.Ranges {
		r := r
		if r.Min != nil {
			criteria = append(criteria, func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.Where("? >= ?", bun.Ident(r.Column), *r.Min)
			})
		}
		if r.Max != nil {
			criteria = append(criteria, func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.Where("? <= ?", bun.Ident(r.Column), *r.Max)
			})
		}
	}

	for _, e := range d.Equals {
		e := e
		criteria = append(criteria, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("? = ?", bun.Ident(e.Column), e.Value)
		})
	}

	if d.Verified != nil {
		verified := *d.Verified
		criteria = append(criteria, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("? = ?", bun.Ident(query.ColumnFor("isVerified")), verified)
		})
	}

	criteria = append(criteria, orderBy(d.Sort), func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Offset(skip).Limit(limit)
	})
	return criteria
}

func orderBy(s query.Sort) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		if s.Column == "" {
			return q.OrderExpr("? ASC, ? ASC", bun.Ident(query.ColumnFor("createdAt")), bun.Ident("id"))
		}
		dir := "ASC"
		if s.Direction == query.Desc {
			dir = "DESC"
		}
		return q.OrderExpr("? "+dir+", ? ASC", bun.Ident(s.Column), bun.Ident("id"))
	}
}
