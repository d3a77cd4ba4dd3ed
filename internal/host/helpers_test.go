package host

import logx "discordmessenger/pkg/logx"

func logxNop() logx.Logger { return logx.Nop() }
