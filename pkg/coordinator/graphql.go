package coordinator

import (
	"encoding/json"
	"net/http"

	"github.com/graphql-go/graphql"

	"github.com/ledgerflow/twopc/pkg/model"
)

// graphQLSchema builds the read-only admin query schema: a single
// transaction lookup by id, and a listing filtered by state. There is no
// mutation type — every state change in this system happens through the
// 2PC orchestration in transfer.go, never through the diagnostic surface.
func graphQLSchema(co *Coordinator) (graphql.Schema, error) {
	txnType := graphql.NewObject(graphql.ObjectConfig{
		Name:        "Transaction",
		Description: "One entry in the transaction log",
		Fields: graphql.Fields{
			"transactionId": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return p.Source.(*model.TxnRecord).TxnID, nil
				},
			},
			"state": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return string(p.Source.(*model.TxnRecord).State), nil
				},
			},
			"fromAccount": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return p.Source.(*model.TxnRecord).Src, nil
				},
			},
			"toAccount": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return p.Source.(*model.TxnRecord).Dst, nil
				},
			},
			"amount": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Int),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return p.Source.(*model.TxnRecord).Amount, nil
				},
			},
			"error": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return p.Source.(*model.TxnRecord).Error, nil
				},
			},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"transaction": &graphql.Field{
				Type:        txnType,
				Description: "Look up one transaction by id",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					id := p.Args["id"].(string)
					rec, err := co.GetTransaction(p.Context, id)
					if err != nil {
						if err == model.ErrNotFound {
							return nil, nil
						}
						return nil, err
					}
					return rec, nil
				},
			},
			"transactions": &graphql.Field{
				Type:        graphql.NewList(txnType),
				Description: "List transactions filtered by state",
				Args: graphql.FieldConfigArgument{
					"state": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					state := model.TxnState(p.Args["state"].(string))
					return co.ListTransactions(p.Context, state)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: queryType})
}

// graphQLHandler serves POST /graphql requests against the schema above.
type graphQLHandler struct {
	schema graphql.Schema
}

// newGraphQLHandler builds the handler, failing fast if the schema itself
// doesn't type-check.
func newGraphQLHandler(co *Coordinator) (*graphQLHandler, error) {
	schema, err := graphQLSchema(co)
	if err != nil {
		return nil, err
	}
	return &graphQLHandler{schema: schema}, nil
}

type graphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

func (h *graphQLHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "GraphQL only accepts POST requests", http.StatusMethodNotAllowed)
		return
	}

	var req graphQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"errors": []map[string]string{{"message": "invalid request body"}}})
		return
	}

	result := graphql.Do(graphql.Params{
		Schema:         h.schema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        r.Context(),
	})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

// graphiQLPlayground serves a minimal GraphiQL page pointed at /graphql.
func graphiQLPlayground() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(graphiqlHTML))
	}
}

const graphiqlHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>ledgerflow admin console</title>
  <style>body{height:100vh;margin:0;} #graphiql{height:100vh;}</style>
  <script crossorigin src="https://unpkg.com/react@17/umd/react.production.min.js"></script>
  <script crossorigin src="https://unpkg.com/react-dom@17/umd/react-dom.production.min.js"></script>
  <link rel="stylesheet" href="https://unpkg.com/graphiql@1.8.7/graphiql.min.css" />
</head>
<body>
  <div id="graphiql">Loading...</div>
  <script src="https://unpkg.com/graphiql@1.8.7/graphiql.min.js"></script>
  <script>
    const fetcher = GraphiQL.createFetcher({ url: '/graphql' });
    ReactDOM.render(
      React.createElement(GraphiQL, {
        fetcher: fetcher,
        defaultQuery: '# query { transactions(state: "COMMITTED") { transactionId state amount } }',
      }),
      document.getElementById('graphiql'),
    );
  </script>
</body>
</html>
`
