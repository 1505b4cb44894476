// Package broadcast sends one message to every known user.
//
// Deliveries fan out over a bounded worker pool. Transient send failures
// are retried with exponential backoff; a user who blocked the bot is
// counted as failed without retrying.
//
// Basic usage:
//
//	b, err := broadcast.NewBroadcaster(users, client, broadcast.WithProgress(os.Stderr, 50))
//	if err != nil {
//	    return err
//	}
//	defer b.Release()
//
//	report, err := b.Run(ctx, "New feature: /description", adminID)
package broadcast
