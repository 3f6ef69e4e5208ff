// Package events is a small in-process pub/sub bus used by the runtime to
// surface node status changes and completed applies.
//
// Nodes that implement provisioning or dynamic config report changes through
// a subscription callback; the runtime republishes them as
// TypeProvisionStatus and TypeDynamicConfig events, and publishes
// TypeGraphApplied after each successful apply:
//
//	bus := events.NewBus(events.BusConfig{NonBlocking: true})
//	defer bus.Close()
//
//	bus.Subscribe([]string{events.TypeProvisionStatus}, events.HandlerFunc(
//	    func(ctx context.Context, evt events.Event) error {
//	        st := evt.Data().(events.ProvisionStatus)
//	        log.Printf("%s is %s", st.NodeID, st.Status)
//	        return nil
//	    }))
//
//	rt := livegraph.New(templates, livegraph.WithEventBus(bus))
//
// Handlers run on a goroutine per subscription and must not block for long.
// A handler that calls back into the runtime should subscribe on a
// NonBlocking bus, otherwise a full buffer can stall the apply worker.
package events
