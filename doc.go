// Package nilshard implements the coordination core for stateful programs on
// a sharded ledger where cross-shard calls are asynchronous: a caller issues
// a request, control returns immediately, and execution resumes later through
// a separate callback invocation. The package tracks outstanding requests in
// a ledger, guarantees each callback runs exactly once, and gives callbacks a
// two-phase guard for confirming or reverting state mutated optimistically at
// dispatch time.
//
// # Dispatching
//
// The Engine embeds the whole protocol over a platform Transport:
//
//	eng, err := nilshard.NewEngine(nilshard.Config{Transport: transport})
//	if err != nil { log.Fatal(err) }
//	defer eng.Close()
//
//	reqID, err := eng.Dispatch(ctx, nilshard.DispatchRequest{
//	    Originator: "0x1111111111111111111111111111111111111111",
//	    Target:     api.Target{Shard: 2, Address: payee},
//	    Payload:    payload,
//	    Guard:      func() error { return checkBalance(acct, 100) },
//	    Tentative: &nilshard.Tentative{
//	        Apply: func() { acct.Debit(100) },
//	        Undo:  func() { acct.Credit(100) },
//	    },
//	    Callback: func(ctx context.Context, cb *nilshard.CallbackContext, res api.Result) error {
//	        if !res.Success {
//	            return cb.Mutation.Revert()
//	        }
//	        return cb.Mutation.Confirm()
//	    },
//	})
//
// Guard checks must only assert invariants of local state; anything whose
// truth depends on the remote outcome belongs in the callback. A failed guard
// aborts the dispatch atomically: no tentative mutation persists and no
// ledger entry is created.
//
// # Completions
//
// The platform delivers each remote outcome exactly once by invoking
// Engine.Complete with the request id, a success flag, and the result
// payload. The executor removes the ledger entry before the callback runs, so
// a request can never resolve twice, and retires it unconditionally even when
// the callback itself fails.
//
// # Clone deployment
//
// The deploy components pin one factory/template pair per shard and deploy
// clones whose bytecode splices the template address into a fixed delegation
// stub. Because the stub cannot delegate across shards, a factory, its
// template, and all of its clones live on one shard; registering a second
// factory for an occupied shard is rejected.
//
//	reqID, _ := eng.DeployTemplate(ctx, shard, initCode)
//	// ... template completion arrives ...
//	_ = eng.RegisterShard(shard, factory)
//	cloneID, reqID, _ := eng.RequestClone(ctx, shard)
//
// Consensus, shard assignment, gas accounting, and transaction execution are
// the platform's concern; the core only reaches it through the Transport
// interface and the completion channel.
package nilshard
