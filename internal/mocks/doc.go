package mocks

//go:generate mockgen -destination=sender.go -package=mocks -mock_names=Sender=MockSender github.com/vedran77/spark/internal/transport Sender
//go:generate mockgen -destination=push.go -package=mocks -mock_names=Client=MockPushClient github.com/vedran77/spark/internal/push Client
//go:generate mockgen -destination=registry.go -package=mocks github.com/vedran77/spark/internal/presence Registry
