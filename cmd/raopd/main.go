// Command raopd is a RAOP (AirPlay audio) receiver.
package main

import (
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/bluenviron/goraop"
	"github.com/bluenviron/goraop/pkg/dnssd"
	"github.com/bluenviron/goraop/pkg/fairplay"
	"github.com/bluenviron/goraop/pkg/pairing"
)

var (
	flagAPName     string
	flagPassword   string
	flagPort       int
	flagHWAddr     string
	flagAODriver   string
	flagAODevice   string
	flagKeyFile    string
	flagPairSeed   string
	flagFairPlay   bool
	flagMaxClients int
	flagDebug      bool
	flagHelp       bool
)

func init() {
	flag.StringVarP(&flagAPName, "apname", "a", "Shairplay", "Name of the receiver")
	flag.StringVarP(&flagPassword, "password", "p", "", "Password required to connect")
	flag.IntVarP(&flagPort, "port", "o", 5000, "RTSP port")
	flag.StringVarP(&flagHWAddr, "hwaddr", "", "48:5d:60:7c:ee:22", "Hardware address of the receiver")
	flag.StringVarP(&flagAODriver, "ao_driver", "", "stdout", "Output driver (stdout, file, null)")
	flag.StringVarP(&flagAODevice, "ao_devicename", "", "", "Output file of the file driver")
	flag.StringVarP(&flagKeyFile, "keyfile", "", "airport.key", "RSA private key of the receiver")
	flag.StringVarP(&flagPairSeed, "pairing_seed", "", "",
		"Hex-encoded 32-byte seed of the pairing key (random when empty)")
	flag.BoolVarP(&flagFairPlay, "fairplay", "", false, "Decrypt FairPlay keys with the local FairPlay service")
	flag.IntVarP(&flagMaxClients, "max_clients", "", 0, "Maximum number of connections (0 means unlimited)")
	flag.BoolVarP(&flagDebug, "debug", "d", false, "Print debug messages")
	flag.BoolVarP(&flagHelp, "help", "h", false, "Print usage information and exit")
}

func run() error {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if flagDebug {
		logger.SetLevel(logrus.DebugLevel)
	}

	key, err := os.ReadFile(flagKeyFile)
	if err != nil {
		return fmt.Errorf("unable to read key file: %w", err)
	}

	hwaddr, err := net.ParseMAC(flagHWAddr)
	if err != nil {
		return fmt.Errorf("invalid hardware address: %w", err)
	}

	out, err := openOutput(flagAODriver, flagAODevice)
	if err != nil {
		return fmt.Errorf("unable to open output: %w", err)
	}
	defer out.Close()

	s := &goraop.Server{
		Handler: &serverHandler{
			out:    out,
			logger: logger,
		},
		RTSPAddress:  ":" + strconv.FormatInt(int64(flagPort), 10),
		HardwareAddr: hwaddr,
		PrivateKey:   key,
		Password:     flagPassword,
		MaxClients:   flagMaxClients,
		Logger:       logger,
	}

	if flagPairSeed != "" {
		seed, err2 := hex.DecodeString(flagPairSeed)
		if err2 != nil {
			return fmt.Errorf("invalid pairing seed: %w", err2)
		}

		s.Identity, err = pairing.NewIdentityFromSeed(seed)
		if err != nil {
			return fmt.Errorf("invalid pairing seed: %w", err)
		}
	}

	if flagFairPlay {
		s.FairPlay = func() fairplay.Oracle {
			return &fairplay.Loopback{}
		}
	}

	err = s.Start()
	if err != nil {
		return err
	}
	defer s.Close()

	pub := &dnssd.Publisher{
		Name:         flagAPName,
		Port:         s.Port(),
		HardwareAddr: hwaddr,
		Password:     flagPassword != "",
	}
	err = pub.Start()
	if err != nil {
		return err
	}
	defer pub.Close()

	logger.WithFields(logrus.Fields{
		"name": flagAPName,
		"port": s.Port(),
	}).Info("receiver is ready")

	chWait := make(chan error, 1)
	go func() {
		chWait <- s.Wait()
	}()

	chSignal := make(chan os.Signal, 1)
	signal.Notify(chSignal, os.Interrupt, syscall.SIGTERM)

	select {
	case <-chSignal:
		logger.Info("shutting down")
		return nil

	case err = <-chWait:
		return err
	}
}

func main() {
	flag.Parse()

	if flagHelp {
		flag.Usage()
		return
	}

	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERR: %v\n", err)
		os.Exit(1)
	}
}
