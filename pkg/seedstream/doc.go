// Package seedstream provides an embeddable realtime image generation
// client.
//
// A Client keeps one persistent websocket connection to the realtime
// service. The prompt and seed are edited locally. Every edit is pushed
// through a throttle (64ms by default) that keeps only the latest frame of
// each window. Rendered frames stream back and replace the display state
// in arrival order. A seed rotator writes a random seed every 500ms, and
// it competes with user edits for the same state: the last writer wins.
//
// # Basic Usage
//
//	client, err := seedstream.New(seedstream.Config{
//	    Prompt: "a lighthouse at dusk",
//	    Seed:   "123",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := client.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	_ = client.SetPrompt("a lighthouse at dawn")
//	d := client.Display()
//
// The first frame of a session is sent immediately with the quality step
// count ("4"); later edits use the interactive step count ("2").
//
// # Event Handling
//
// Implement [EventHandler], embedding [BaseEventHandler] for the events
// you do not need, and pass it via [WithEventHandler].
//
// # Images
//
// Decoded images live behind [ImageHandle] values issued by an
// [ImageStore]. The default store keeps them in memory; read them with
// [Client.Image]. The previous image is released whenever a newer frame is
// displayed and when the session ends.
//
// # Plugins
//
// Plugins receive a [Controller] and can drive the session, for example
// the prompt file watcher in plugins/promptwatcher:
//
//	client, err := seedstream.New(cfg,
//	    promptwatcher.WithPromptWatcher(promptwatcher.Config{Path: "prompt.txt"}),
//	)
package seedstream
