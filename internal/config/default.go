package config

// DefaultFile is written when no configuration file exists yet.
const DefaultFile = `# audio output: auto, oto, portaudio, writer or null
output: "auto"
# raw PCM destination for the writer output ("-" for stdout)
output_file: ""
# pace the writer output at the sample rate
realtime: true
# device side buffer of the oto output
device_buffer: "100ms"

# stream buffer geometry, in 16-bit units
buffer:
  capacity: 512
  # prefetch the next block once the read cursor passes this unit
  watermark: 256
# words written per tick
burst: 4
# worst case storage read the buffer must cover
max_refill_latency: "5ms"
# sample rates the output accepts
sample_rates: [8000, 11025, 12000, 16000, 22050, 24000, 32000, 44100, 48000]
poll_interval: "2ms"
drain_timeout: "1s"

# simulated per-read storage delay
storage_latency: "0s"
# directory scanned by list and watch
library: "."

# ignore repeated stop requests within this interval
cancel_debounce: "50ms"
`
