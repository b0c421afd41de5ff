package graphql

import "github.com/graphql-go/graphql"

// Schema builds the read-only GraphQL schema exposing buffer pool
// statistics through a single poolStats query.
func Schema(source StatsSource) (graphql.Schema, error) {
	poolStatsType := graphql.NewObject(graphql.ObjectConfig{
		Name:        "PoolStats",
		Description: "Buffer pool counters, mirroring /stats",
		Fields: graphql.Fields{
			"capacity": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.Int),
				Description: "Buffer pool capacity in frames",
			},
			"resident": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.Int),
				Description: "Pages currently resident in the pool",
			},
			"hits": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.Int),
				Description: "Page table hits",
			},
			"misses": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.Int),
				Description: "Page table misses",
			},
			"evictions": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.Int),
				Description: "Frames reclaimed by the eviction policy",
			},
			"queueDepth": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.Int),
				Description: "Disk scheduler queue depth",
			},
			"shards": &graphql.Field{
				Type:        graphql.Int,
				Description: "Shard count, present only for a sharded pool",
			},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"poolStats": &graphql.Field{
				Type:        graphql.NewNonNull(poolStatsType),
				Description: "Current buffer pool statistics",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return resolvePoolStats(source), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}
