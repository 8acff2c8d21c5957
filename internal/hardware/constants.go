package hardware

// Channel names used by the rest of the service. The mapping to chip
// lines and ADC channels comes from the configuration.
const (
	ChannelMotorIn1 = "motor_in1"
	ChannelMotorIn2 = "motor_in2"
	ChannelCommand  = "command"
	ChannelRain     = "rain"
	ChannelLight    = "light"
)

const LineConsumer = "awning-service"
