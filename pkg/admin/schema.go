package admin

import (
	"github.com/graphql-go/graphql"

	"github.com/corviddb/pagecache/pkg/buffer"
)

// Schema builds a read-only GraphQL schema exposing a single bufferPool
// query: current pool statistics plus a snapshot of resident frames. There
// are no mutations — the admin surface observes the pool, it never drives
// it.
func Schema(bp *buffer.BufferPoolManager) (graphql.Schema, error) {
	frameType := graphql.NewObject(graphql.ObjectConfig{
		Name:        "Frame",
		Description: "A resident frame in the buffer pool",
		Fields: graphql.Fields{
			"id": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.Int),
				Description: "Frame slot index",
			},
			"pageId": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.Int),
				Description: "The page id currently held by this frame",
			},
			"pinCount": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.Int),
				Description: "Outstanding guards pinning this frame",
			},
			"isDirty": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.Boolean),
				Description: "Whether the frame has unflushed writes",
			},
		},
	})

	statsType := graphql.NewObject(graphql.ObjectConfig{
		Name:        "BufferPoolStats",
		Description: "Point-in-time buffer pool occupancy and cache effectiveness",
		Fields: graphql.Fields{
			"capacity":     &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"resident":     &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"free":         &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"replacerSize": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"hits":         &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"misses":       &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"evictions":    &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		},
	})

	poolType := graphql.NewObject(graphql.ObjectConfig{
		Name:        "BufferPool",
		Description: "The buffer pool manager's observable state",
		Fields: graphql.Fields{
			"stats": &graphql.Field{
				Type: graphql.NewNonNull(statsType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return bp.Stats(), nil
				},
			},
			"frames": &graphql.Field{
				Type: graphql.NewList(graphql.NewNonNull(frameType)),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return bp.Frames(), nil
				},
			},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"bufferPool": &graphql.Field{
				Type: graphql.NewNonNull(poolType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return bp, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: queryType})
}
