package integrations

import (
	"context"
	"fmt"
	"log"
	"strconv"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/meshguard/backend-go/internal/domain"
	"github.com/meshguard/backend-go/internal/orchestrator"
)

// K8sActions implements recovery actions against a Kubernetes cluster.
// Services are assumed to be labeled app=<service> and backed by a
// deployment of the same name.
type K8sActions struct {
	clientset kubernetes.Interface
	namespace string
}

// NewK8sActions creates K8sActions with in-cluster or kubeconfig auth
func NewK8sActions(kubeconfig, namespace string) (*K8sActions, error) {
	var cfg *rest.Config
	var err error

	if kubeconfig != "" {
		cfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	} else {
		cfg, err = rest.InClusterConfig()
		if err != nil {
			// Fallback to default kubeconfig
			cfg, err = clientcmd.BuildConfigFromFlags("", clientcmd.RecommendedHomeFile)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("k8s config: %w", err)
	}

	cs, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("k8s clientset: %w", err)
	}

	return &K8sActions{clientset: cs, namespace: namespace}, nil
}

// Register installs the Kubernetes-backed handlers
func (a *K8sActions) Register(registry *orchestrator.HandlerRegistry) {
	registry.RegisterFunc(domain.ActionServiceRestart, a.restartService)
	registry.RegisterFunc(domain.ActionScaleUp, a.scaleUp)
	registry.RegisterFunc(domain.ActionTrafficRedirect, a.redirectTraffic)
}

func (a *K8sActions) targetNamespace(action *domain.RecoveryAction) string {
	if ns := action.Parameters["namespace"]; ns != "" {
		return ns
	}
	return a.namespace
}

func (a *K8sActions) selector(action *domain.RecoveryAction) string {
	if sel := action.Parameters["selector"]; sel != "" {
		return sel
	}
	return "app=" + action.TargetService
}

// restartService deletes the service's pods; the deployment controller
// recreates them
func (a *K8sActions) restartService(ctx context.Context, action *domain.RecoveryAction) (bool, error) {
	namespace := a.targetNamespace(action)
	selector := a.selector(action)

	pods, err := a.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return false, fmt.Errorf("list pods: %w", err)
	}
	if len(pods.Items) == 0 {
		return false, fmt.Errorf("no pods match %s in %s", selector, namespace)
	}

	for _, pod := range pods.Items {
		if err := a.clientset.CoreV1().Pods(namespace).Delete(ctx, pod.Name, metav1.DeleteOptions{}); err != nil {
			return false, fmt.Errorf("delete pod %s: %w", pod.Name, err)
		}
	}
	log.Printf("Restarted %s: deleted %d pods in %s", action.TargetService, len(pods.Items), namespace)
	return true, nil
}

// scaleUp raises the deployment's replica count. Parameters: "replicas"
// sets an absolute count, otherwise "increment" (default 1) is added.
func (a *K8sActions) scaleUp(ctx context.Context, action *domain.RecoveryAction) (bool, error) {
	namespace := a.targetNamespace(action)
	deployments := a.clientset.AppsV1().Deployments(namespace)

	scale, err := deployments.GetScale(ctx, action.TargetService, metav1.GetOptions{})
	if err != nil {
		return false, fmt.Errorf("get scale for %s: %w", action.TargetService, err)
	}

	target := scale.Spec.Replicas
	if abs := action.Parameters["replicas"]; abs != "" {
		n, err := strconv.Atoi(abs)
		if err != nil {
			return false, fmt.Errorf("bad replicas parameter %q: %w", abs, err)
		}
		target = int32(n)
	} else {
		increment := 1
		if inc := action.Parameters["increment"]; inc != "" {
			if n, err := strconv.Atoi(inc); err == nil {
				increment = n
			}
		}
		target += int32(increment)
	}

	scale.Spec.Replicas = target
	if _, err := deployments.UpdateScale(ctx, action.TargetService, scale, metav1.UpdateOptions{}); err != nil {
		return false, fmt.Errorf("update scale for %s: %w", action.TargetService, err)
	}
	log.Printf("Scaled %s to %d replicas in %s", action.TargetService, target, namespace)
	return true, nil
}

// redirectTraffic repoints the service's selector at a standby workload
// named in the "to" parameter
func (a *K8sActions) redirectTraffic(ctx context.Context, action *domain.RecoveryAction) (bool, error) {
	namespace := a.targetNamespace(action)
	to := action.Parameters["to"]
	if to == "" {
		to = action.TargetService + "-standby"
	}

	patch := []byte(fmt.Sprintf(`{"spec":{"selector":{"app":%q}}}`, to))
	_, err := a.clientset.CoreV1().Services(namespace).Patch(
		ctx, action.TargetService, types.MergePatchType, patch, metav1.PatchOptions{})
	if err != nil {
		return false, fmt.Errorf("patch service %s: %w", action.TargetService, err)
	}
	log.Printf("Redirected traffic for %s to app=%s in %s", action.TargetService, to, namespace)
	return true, nil
}
